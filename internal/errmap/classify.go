// Package errmap turns raw failures from the session manager into display
// categories, and maps them onto process exit codes for the CLI.
package errmap

import (
	"bytes"
	"errors"
	"mime"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/aelexs/authsession/internal/identity"
	"github.com/aelexs/authsession/pkg/identityapi"
)

// Kind is the closed set of display categories.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetworkTimeout
	KindNetworkUnreachable
	KindNetworkOther
	KindServerMessage
	KindServerFieldError
	KindServerStatus
)

var kindNames = map[Kind]string{
	KindUnknown:            "unknown",
	KindNetworkTimeout:     "network_timeout",
	KindNetworkUnreachable: "network_unreachable",
	KindNetworkOther:       "network_other",
	KindServerMessage:      "server_message",
	KindServerFieldError:   "server_field_error",
	KindServerStatus:       "server_status",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Classified is a display-ready categorization of a failure.
//
// Text carries the category payload: the server's message for
// KindServerMessage and KindServerFieldError, the transport message for
// KindNetworkOther, and the mapped human message (if any) for
// KindServerStatus.
type Classified struct {
	Kind       Kind
	Field      string
	Text       string
	StatusCode int

	// display overrides Message when a classifier pins one text for a kind.
	display string
}

// Message renders the classification for the user.
func (c Classified) Message() string {
	if c.display != "" {
		return c.display
	}

	switch c.Kind {
	case KindNetworkTimeout:
		return MsgTimeout
	case KindNetworkUnreachable:
		return MsgUnreachable
	case KindNetworkOther:
		return MsgNetworkPrefix + c.Text
	case KindServerMessage, KindServerFieldError:
		return c.Text
	case KindServerStatus:
		if c.Text != "" {
			return c.Text
		}
		return MsgStatusFallback
	default:
		return MsgUnexpected
	}
}

// Classifier holds the per-form policy: which named fields are consulted
// and which fixed messages apply. The zero value is usable.
type Classifier struct {
	// Fields are checked in order after detail and non_field_errors.
	Fields []string

	// GenericMessage is used when a body is present but carries no
	// recognizable guidance.
	GenericMessage string

	// StatusMessages maps status codes of body-less responses to fixed text.
	StatusMessages map[int]string

	// FallbackMessage is shown for body-less responses with unmapped status.
	FallbackMessage string

	// NetworkMessage, when set, replaces the text of every network kind.
	NetworkMessage string
}

// Classify applies, in priority order: connection failures, response body
// guidance, status-only mapping, then Unknown. It is pure.
func (c Classifier) Classify(err error) Classified {
	if err == nil {
		return Classified{Kind: KindUnknown}
	}

	var netErr *identity.NetworkError
	if errors.As(err, &netErr) {
		return c.network(netErr)
	}

	var respErr *identity.ResponseError
	if errors.As(err, &respErr) {
		if out, ok := c.body(respErr); ok {
			return out
		}
		return c.status(respErr.StatusCode)
	}

	return Classified{Kind: KindUnknown, Text: MsgUnexpected}
}

func (c Classifier) network(e *identity.NetworkError) Classified {
	var out Classified
	switch {
	case e.Timeout:
		out = Classified{Kind: KindNetworkTimeout}
	case e.Unreachable:
		out = Classified{Kind: KindNetworkUnreachable}
	default:
		msg := ""
		if e.Err != nil {
			msg = e.Err.Error()
		}
		out = Classified{Kind: KindNetworkOther, Text: msg}
	}
	out.display = c.NetworkMessage
	return out
}

// body reports false when the response carries nothing usable, so the
// status code decides.
func (c Classifier) body(e *identity.ResponseError) (Classified, bool) {
	raw := bytes.TrimSpace(e.Body)
	if len(raw) == 0 {
		return Classified{}, false
	}

	if !gjson.ValidBytes(raw) {
		// An HTML error page is not a message meant for users.
		if isHTML(e.ContentType) {
			return Classified{}, false
		}
		return c.message(e.StatusCode, string(raw)), true
	}

	doc := gjson.ParseBytes(raw)
	switch {
	case doc.Type == gjson.Null:
		return Classified{}, false

	case doc.Type == gjson.String:
		if text := strings.TrimSpace(doc.String()); text != "" {
			return c.message(e.StatusCode, text), true
		}
		return Classified{}, false

	case doc.IsArray():
		if text := firstText(doc); text != "" {
			return c.message(e.StatusCode, text), true
		}

	case doc.IsObject():
		if text := firstText(doc.Get(identityapi.FieldDetail)); text != "" {
			return c.message(e.StatusCode, text), true
		}
		if text := firstText(doc.Get(identityapi.FieldNonFieldErrors)); text != "" {
			return c.message(e.StatusCode, text), true
		}
		for _, field := range c.Fields {
			if text := firstText(doc.Get(gjsonPath(field))); text != "" {
				return Classified{
					Kind:       KindServerFieldError,
					Field:      field,
					Text:       text,
					StatusCode: e.StatusCode,
				}, true
			}
		}
	}

	return c.message(e.StatusCode, c.genericMessage()), true
}

func (c Classifier) message(status int, text string) Classified {
	return Classified{Kind: KindServerMessage, Text: text, StatusCode: status}
}

func (c Classifier) status(code int) Classified {
	if text, ok := c.StatusMessages[code]; ok {
		return Classified{Kind: KindServerStatus, Text: text, StatusCode: code}
	}
	return Classified{Kind: KindServerStatus, Text: c.FallbackMessage, StatusCode: code}
}

func (c Classifier) genericMessage() string {
	if c.GenericMessage != "" {
		return c.GenericMessage
	}
	return MsgGenericFailure
}

// firstText returns a string value, or the first element of a list.
// Django REST validation errors are lists of strings per field.
func firstText(r gjson.Result) string {
	switch {
	case r.Type == gjson.String:
		return strings.TrimSpace(r.String())
	case r.IsArray():
		items := r.Array()
		if len(items) == 0 {
			return ""
		}
		if items[0].Type == gjson.String {
			return strings.TrimSpace(items[0].String())
		}
		return strings.TrimSpace(items[0].Raw)
	default:
		return ""
	}
}

// gjsonPath escapes path syntax so a field name matches literally.
func gjsonPath(field string) string {
	r := strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`, "|", `\|`, "#", `\#`, "@", `\@`)
	return r.Replace(field)
}

func isHTML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "text/html"
}
