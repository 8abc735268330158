package notifsvc

import (
	"fmt"
	"log"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/trezcool/mahudhurio/core"
)

var (
	SentNotifications = make([]core.Notification, 0)
	mu                sync.Mutex
)

type consoleService struct {
	defaultFromEmail mail.Address
	subjPrefix       string
	disableOutput    bool
}

var _ core.NotificationService = (*consoleService)(nil)

func NewConsoleService(conf *core.Config) core.NotificationService {
	return &consoleService{
		defaultFromEmail: conf.DefaultFromEmail,
		subjPrefix:       "[" + conf.AppName + "] ",
	}
}

func (svc consoleService) SendNotifications(notifs ...*core.Notification) {
	for _, notif := range notifs {
		go svc.sendNotification(notif)
	}
}

func (svc consoleService) sendNotification(notif *core.Notification) {
	if !notif.HasRecipients() || notif.Body == "" {
		return
	}
	svc.send(*notif)
	mu.Lock()
	SentNotifications = append(SentNotifications, *notif)
	mu.Unlock()
}

func (svc consoleService) send(notif core.Notification) {
	body := new(strings.Builder)

	_, _ = fmt.Fprintf(body, "From: %s\r\n", svc.defaultFromEmail.String())
	_, _ = fmt.Fprintf(body, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	_, _ = fmt.Fprintf(body, "Event: %s\r\n", notif.Event)
	_, _ = fmt.Fprintf(body, "Student: %s\r\n", notif.StudentID)
	_, _ = fmt.Fprintf(body, "Subject: %s\r\n", svc.subjPrefix+notif.Subject)
	_, _ = fmt.Fprintf(body, "To: %s\r\n", svc.joinAddresses(notif.To))
	_, _ = fmt.Fprint(body, "\r\n")
	_, _ = fmt.Fprintf(body, "%s\r\n", notif.Body)

	if !svc.disableOutput {
		log.Println(body.String())
	}
}

func (svc consoleService) joinAddresses(addrs []mail.Address) string {
	toJoin := make([]string, 0, len(addrs))
	for _, a := range addrs {
		toJoin = append(toJoin, a.String())
	}
	return strings.Join(toJoin, ", ")
}

type consoleServiceMock struct {
	consoleService
}

func NewConsoleServiceMock(conf *core.Config) core.NotificationService {
	return &consoleServiceMock{
		consoleService: consoleService{
			defaultFromEmail: conf.DefaultFromEmail,
			subjPrefix:       "[" + conf.AppName + "] ",
			disableOutput:    true,
		},
	}
}

func (svc *consoleServiceMock) SendNotifications(notifs ...*core.Notification) {
	for _, notif := range notifs {
		// run synchronously
		svc.sendNotification(notif)
	}
}
