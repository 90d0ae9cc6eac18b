package testutil

import (
	"context"
	"regexp"
	"sync"

	"kapacity/api/internal/notify"
)

var codePattern = regexp.MustCompile(`\b\d{6}\b`)

type Delivery struct {
	To      string
	Message notify.Message
}

// Inbox is a notify.Sender that keeps everything it is given.
type Inbox struct {
	mu         sync.Mutex
	deliveries []Delivery

	// Err, when set, fails every send.
	Err error
}

func (i *Inbox) Send(_ context.Context, to string, msg notify.Message) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.Err != nil {
		return i.Err
	}
	i.deliveries = append(i.deliveries, Delivery{To: to, Message: msg})
	return nil
}

func (i *Inbox) Deliveries() []Delivery {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]Delivery(nil), i.deliveries...)
}

// LastCode extracts the six-digit code from the most recent message sent
// to to.
func (i *Inbox) LastCode(to string) string {
	i.mu.Lock()
	defer i.mu.Unlock()
	for j := len(i.deliveries) - 1; j >= 0; j-- {
		if i.deliveries[j].To == to {
			return codePattern.FindString(i.deliveries[j].Message.Body)
		}
	}
	return ""
}
