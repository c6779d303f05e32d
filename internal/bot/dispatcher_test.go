package bot

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hesabgar/hesabgar-bot/internal/i18n"
)

type stubTranslator struct{}

func (stubTranslator) T(key string) string {
	switch key {
	case "annotation.paid":
		return "✅ Paid marked by %s at %s"
	case "annotation.unpaid":
		return "❌ Unpaid marked by %s at %s"
	case "annotation.dismiss":
		return "🚫 Dismissed by %s at %s"
	default:
		return key
	}
}

func (s stubTranslator) Tf(key string, args ...any) string { return fmt.Sprintf(s.T(key), args...) }
func (stubTranslator) Lang() string                        { return "en" }

var _ i18n.Translator = stubTranslator{}

func TestStripPaymentAnnotations(t *testing.T) {
	d := NewDispatcher(nil, nil, stubTranslator{}, nil)

	text := "🧾 header\n\nbody line\n\n✅ Paid marked by @boss at 2026/01/01 - 10:00"
	assert.Equal(t, "🧾 header\n\nbody line", d.stripPaymentAnnotations(text))

	// Settlement annotations survive a payment re-mark.
	text = "body\n\n➕ Added to settlement list by @boss at 2026/01/01 - 10:00\n❌ Unpaid marked by @boss at 2026/01/01 - 10:05"
	assert.Equal(t, "body\n\n➕ Added to settlement list by @boss at 2026/01/01 - 10:00", d.stripPaymentAnnotations(text))
}

func TestStripPaymentAnnotationsLeavesPlainTextAlone(t *testing.T) {
	d := NewDispatcher(nil, nil, stubTranslator{}, nil)

	text := "no annotations here"
	assert.Equal(t, text, d.stripPaymentAnnotations(text))
}

func TestTemplatePrefix(t *testing.T) {
	assert.Equal(t, "✅ Paid marked by ", templatePrefix("✅ Paid marked by %s at %s"))
	assert.Equal(t, "static", templatePrefix("static"))
}
