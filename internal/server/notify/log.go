package notify

import (
	"context"

	"github.com/dmitrijs2005/credkeeper/internal/logging"
)

// LogNotifier writes emails to the log instead of sending them. Meant for
// local development: the log line contains the link with the token.
type LogNotifier struct {
	r   Renderer
	log logging.Logger
}

func NewLogNotifier(r Renderer, log logging.Logger) *LogNotifier {
	return &LogNotifier{r: r, log: log.With("module", "notify")}
}

func (n *LogNotifier) SendPasswordResetEmail(ctx context.Context, msg PasswordResetEmail) error {
	n.emit(ctx, n.r.PasswordReset(msg))
	return nil
}

func (n *LogNotifier) SendEmailVerificationEmail(ctx context.Context, msg VerificationEmail) error {
	n.emit(ctx, n.r.Verification(msg))
	return nil
}

func (n *LogNotifier) emit(ctx context.Context, m Message) {
	n.log.Info(ctx, "email not sent (log notifier)", "kind", m.Kind, "to", m.To, "link", m.Link)
}
