package notify

import (
	"fmt"

	"fyne.io/fyne/v2"

	"github.com/ytget/stream-downloader/internal/model"
)

// Notification texts
const (
	titleSuccess = "Download finished"
	titleFailed  = "Download failed"
)

// NotificationSender is implemented by fyne.App
type NotificationSender interface {
	SendNotification(*fyne.Notification)
}

// Desktop shows a system notification when a download finishes.
// It stays quiet unless enabled reports true at the time of the event.
type Desktop struct {
	sender  NotificationSender
	enabled func() bool
}

func NewDesktop(sender NotificationSender, enabled func() bool) *Desktop {
	return &Desktop{sender: sender, enabled: enabled}
}

func (d *Desktop) Emit(name string, payload any) {
	if !isTerminal(name) || (d.enabled != nil && !d.enabled()) {
		return
	}

	event, ok := payload.(model.StatusEvent)
	if !ok {
		return
	}

	title := titleSuccess
	content := event.Name
	if name == model.EventFailed {
		title = titleFailed
		if event.Error != "" {
			content = fmt.Sprintf("%s: %s", event.Name, event.Error)
		}
	}

	d.sender.SendNotification(fyne.NewNotification(title, content))
}
