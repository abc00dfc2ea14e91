package messaging

import (
	"context"
	"fmt"
	"strings"
)

// CompositeSender delivers through every registered sender.
type CompositeSender struct {
	senders []Sender
}

func NewCompositeSender(senders ...Sender) *CompositeSender {
	cs := &CompositeSender{}
	for _, s := range senders {
		cs.AddSender(s)
	}
	return cs
}

// AddSender ignores nil senders.
func (cs *CompositeSender) AddSender(sender Sender) {
	if sender != nil {
		cs.senders = append(cs.senders, sender)
	}
}

// Len returns the number of registered senders.
func (cs *CompositeSender) Len() int {
	return len(cs.senders)
}

// Send tries every sender and joins their errors.
func (cs *CompositeSender) Send(ctx context.Context, phone, text string) error {
	if len(cs.senders) == 0 {
		return fmt.Errorf("no senders configured in CompositeSender")
	}
	var errs []string
	for _, sender := range cs.senders {
		if err := sender.Send(ctx, phone, text); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("composite message send failed: [ %s ]", strings.Join(errs, "; "))
	}
	return nil
}
