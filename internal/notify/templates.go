package notify

import (
	"fmt"
	"time"

	"kapacity/api/internal/models"
)

// CodeMessage renders the text carrying a one-time code.
func CodeMessage(purpose models.OTPPurpose, code string, ttl time.Duration) Message {
	minutes := int(ttl.Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}

	switch purpose {
	case models.OTPPurposeResetPassword:
		return Message{
			Subject: "Reset your Kapacity password",
			Body: fmt.Sprintf("Your Kapacity password reset code is %s. It expires in %d minutes. "+
				"If you did not ask to reset your password, ignore this message.", code, minutes),
		}
	default:
		return Message{
			Subject: "Verify your Kapacity account",
			Body:    fmt.Sprintf("Your Kapacity verification code is %s. It expires in %d minutes.", code, minutes),
		}
	}
}
