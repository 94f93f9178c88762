package logger

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
)

// secretKeys are replaced entirely.
var secretKeys = map[string]struct{}{
	"password":      {},
	"token":         {},
	"secret":        {},
	"api_key":       {},
	"authorization": {},
	"dsn":           {},
	"pin":           {},
	"pin_code":      {},
}

// phoneKeys keep their last digits so support can still correlate lines.
var phoneKeys = map[string]struct{}{
	"phone":          {},
	"sender_phone":   {},
	"receiver_phone": {},
}

// botTokenPattern matches Telegram bot tokens, which telebot embeds in the
// request URLs it reports inside errors.
var botTokenPattern = regexp.MustCompile(`\d{5,}:[A-Za-z0-9_-]{30,}`)

const (
	masked         = "***"
	phoneTailShown = 4
)

// MaskingHandler hides credentials and phone numbers before records reach
// the wrapped handler.
type MaskingHandler struct {
	next slog.Handler
}

func NewMaskingHandler(next slog.Handler) *MaskingHandler {
	return &MaskingHandler{next: next}
}

func (h *MaskingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *MaskingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Attr, len(attrs))
	for i, attr := range attrs {
		out[i] = maskAttr(attr)
	}
	return &MaskingHandler{next: h.next.WithAttrs(out)}
}

func (h *MaskingHandler) WithGroup(name string) slog.Handler {
	return &MaskingHandler{next: h.next.WithGroup(name)}
}

func (h *MaskingHandler) Handle(ctx context.Context, record slog.Record) error {
	out := slog.NewRecord(record.Time, record.Level, botTokenPattern.ReplaceAllString(record.Message, masked), record.PC)

	record.Attrs(func(attr slog.Attr) bool {
		out.AddAttrs(maskAttr(attr))
		return true
	})

	return h.next.Handle(ctx, out)
}

func maskAttr(attr slog.Attr) slog.Attr {
	attr.Value = attr.Value.Resolve()
	key := strings.ToLower(attr.Key)

	if _, ok := secretKeys[key]; ok {
		attr.Value = slog.StringValue(masked)
		return attr
	}

	switch attr.Value.Kind() {
	case slog.KindGroup:
		group := attr.Value.Group()
		out := make([]slog.Attr, len(group))
		for i, a := range group {
			out[i] = maskAttr(a)
		}
		attr.Value = slog.GroupValue(out...)
	case slog.KindString:
		s := attr.Value.String()
		if _, ok := phoneKeys[key]; ok {
			s = maskPhone(s)
		}
		attr.Value = slog.StringValue(botTokenPattern.ReplaceAllString(s, masked))
	case slog.KindAny:
		// errors keep their type unless they leak a token
		if err, ok := attr.Value.Any().(error); ok && botTokenPattern.MatchString(err.Error()) {
			attr.Value = slog.StringValue(botTokenPattern.ReplaceAllString(err.Error(), masked))
		}
	}

	return attr
}

// maskPhone keeps the last digits: "+992900001234" becomes "***1234".
func maskPhone(phone string) string {
	if len(phone) <= phoneTailShown {
		return masked
	}
	return masked + phone[len(phone)-phoneTailShown:]
}
