// validation.go - Subscription form decoding and validation
package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

// maxFormBytes caps the subscription body; two short text fields fit easily.
const maxFormBytes = 64 << 10

var (
	errMalformedForm = errors.New("malformed form body")
	errMissingField  = errors.New("missing form field")
	errBodyTooLarge  = errors.New("form body too large")
)

// subscribeForm is the decoded POST /subscriptions body.
type subscribeForm struct {
	Name  string
	Email string
}

// parseSubscribeForm decodes a url-encoded body. Both fields are required;
// a value made only of whitespace counts as missing.
func parseSubscribeForm(w http.ResponseWriter, r *http.Request) (subscribeForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return subscribeForm{}, fmt.Errorf("%w: limit %d bytes", errBodyTooLarge, tooLarge.Limit)
		}
		return subscribeForm{}, fmt.Errorf("%w: %w", errMalformedForm, err)
	}

	form := subscribeForm{
		Name:  strings.TrimSpace(r.PostForm.Get("name")),
		Email: strings.TrimSpace(r.PostForm.Get("email")),
	}

	if !validText(form.Name) {
		return subscribeForm{}, fmt.Errorf("%w: name is not valid text", errMalformedForm)
	}
	if !validText(form.Email) {
		return subscribeForm{}, fmt.Errorf("%w: email is not valid text", errMalformedForm)
	}

	var missing []string
	if form.Name == "" {
		missing = append(missing, "name")
	}
	if form.Email == "" {
		missing = append(missing, "email")
	}
	if len(missing) > 0 {
		return subscribeForm{}, fmt.Errorf("%w: %s", errMissingField, strings.Join(missing, ", "))
	}
	return form, nil
}

// validText rejects what a PostgreSQL text column cannot hold.
func validText(v string) bool {
	return utf8.ValidString(v) && !strings.ContainsRune(v, 0)
}
