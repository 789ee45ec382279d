package cli

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	"chatdash/core"
	"chatdash/session"

	"github.com/spf13/cobra"
)

func newChatCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "chat <roomId>",
		Short: "Open an interactive message session in a chatroom.",
		Long: `Open an interactive message session. Every line is sent as a message.

  /older          show older messages
  /image <path>   send an image file
  /quit           close the session`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			user, err := a.currentUser()
			if err != nil {
				return err
			}
			room, err := a.ownedRoom(cmd.Context(), args[0], user.MobileNumber)
			if err != nil {
				return err
			}

			sess := session.New(room.ID, a.sessionOptions())
			defer sess.Close()

			return runChat(sess, room.Title, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// chatPrinter serialises output from the input loop and the reply goroutine.
type chatPrinter struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *chatPrinter) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format, args...)
}

func (p *chatPrinter) message(msg core.Message) {
	who := "you"
	if msg.Sender == core.SenderResponder {
		who = "ai"
	}
	body := msg.Text
	if msg.Image != "" {
		if body != "" {
			body += " "
		}
		body += fmt.Sprintf("[image, %d bytes]", len(msg.Image))
	}
	p.printf("[%s] %s: %s\n", msg.Timestamp.Local().Format("15:04:05"), who, body)
}

func runChat(sess *session.Session, title string, in io.Reader, out io.Writer) error {
	p := &chatPrinter{out: out}

	p.printf("== %s ==\n", title)
	for _, msg := range sess.Messages() {
		p.message(msg)
	}

	unsubscribe := sess.Subscribe(func(ev session.Event) {
		switch ev.Kind {
		case session.EventMessage:
			if ev.Message.Sender == core.SenderResponder {
				p.message(ev.Message)
			}
		case session.EventTyping:
			if ev.Typing {
				p.printf("ai is typing...\n")
			}
		}
	})
	defer unsubscribe()

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "/quit":
			return nil
		case line == "/older":
			added := sess.LoadOlder()
			msgs := sess.Messages()
			p.printf("-- %d older messages --\n", added)
			for _, msg := range msgs[:min(added, len(msgs))] {
				p.message(msg)
			}
		case strings.HasPrefix(line, "/image "):
			image, err := readImage(strings.TrimSpace(strings.TrimPrefix(line, "/image ")))
			if err != nil {
				p.printf("error: %v\n", err)
				continue
			}
			msg, err := sess.Send("", image)
			if err != nil {
				p.printf("error: %v\n", err)
				continue
			}
			p.message(msg)
		default:
			msg, err := sess.Send(line, "")
			if err != nil {
				p.printf("error: %v\n", err)
				continue
			}
			p.message(msg)
		}
	}
	return scanner.Err()
}

// readImage loads path as a base64 data URL.
func readImage(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return "data:" + http.DetectContentType(data) + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
