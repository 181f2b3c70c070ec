// Package i18n holds the user facing strings. Thai is the default language.
package i18n

import (
	"fmt"
	"net/http"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys
const (
	SignInRequired   = "gate.sign_in_required"
	AccountSuspended = "gate.account_suspended"

	MissingEmailOrPassword = "missing_email_or_password"
	UnableToFetchUser      = "unable_to_fetch_user"
	AccountSuspendedCode   = "account_suspended"
	CheckEmailOrSignIn     = "check_email_or_sign_in"
	NotAuthenticated       = "not_authenticated"
	ActivityTypeRequired   = "activity_type_required"
	InvalidID              = "invalid_id"
	NotFound               = "not_found"
	UnexpectedError        = "unexpected_error"
	ActivitySaved          = "activity_saved"
	ActivityDeleted        = "activity_deleted"
	IdentityUnavailable    = "identity_unavailable"
)

var entries = map[string]map[language.Tag]string{
	SignInRequired: {
		language.Thai:    "กรุณาเข้าสู่ระบบก่อนใช้งาน",
		language.English: "Please sign in to continue",
	},
	AccountSuspended: {
		language.Thai:    "บัญชีของคุณถูกระงับหรือไม่ใช้งาน",
		language.English: "Your account is suspended or inactive",
	},
	MissingEmailOrPassword: {
		language.Thai:    "กรุณากรอกอีเมลและรหัสผ่าน",
		language.English: "Email and password are required",
	},
	UnableToFetchUser: {
		language.Thai:    "ไม่สามารถดึงข้อมูลผู้ใช้ได้",
		language.English: "Unable to fetch the signed in user",
	},
	AccountSuspendedCode: {
		language.Thai:    "บัญชีของคุณถูกระงับหรือไม่ใช้งาน",
		language.English: "Your account is suspended or inactive",
	},
	CheckEmailOrSignIn: {
		language.Thai:    "กรุณาตรวจสอบอีเมลหรือเข้าสู่ระบบ",
		language.English: "Check your email to confirm, or sign in",
	},
	NotAuthenticated: {
		language.Thai:    "กรุณาเข้าสู่ระบบ",
		language.English: "You are not signed in",
	},
	ActivityTypeRequired: {
		language.Thai:    "กรุณาระบุประเภทกิจกรรม",
		language.English: "Activity type is required",
	},
	InvalidID: {
		language.Thai:    "รหัสกิจกรรมไม่ถูกต้อง",
		language.English: "Invalid activity id",
	},
	NotFound: {
		language.Thai:    "ไม่พบกิจกรรม",
		language.English: "Activity not found",
	},
	UnexpectedError: {
		language.Thai:    "เกิดข้อผิดพลาด กรุณาลองใหม่อีกครั้ง",
		language.English: "Something went wrong, please try again",
	},
	ActivitySaved: {
		language.Thai:    "บันทึกกิจกรรมแล้ว",
		language.English: "Activity saved",
	},
	ActivityDeleted: {
		language.Thai:    "ลบกิจกรรมแล้ว",
		language.English: "Activity deleted",
	},
	IdentityUnavailable: {
		language.Thai:    "ระบบยืนยันตัวตนยังไม่ได้ตั้งค่า",
		language.English: "Sign in is not configured",
	},
}

// Supported lists the languages with a full catalog
var Supported = []language.Tag{language.Thai, language.English}

// Translator resolves message keys for a request's preferred language
type Translator struct {
	catalog  *catalog.Builder
	tags     []language.Tag
	matcher  language.Matcher
	fallback language.Tag
}

// New builds the catalog. defaultLang is a BCP 47 tag used when the request
// expresses no usable preference.
func New(defaultLang string) (*Translator, error) {
	fallback := language.Thai
	if defaultLang != "" {
		tag, err := language.Parse(defaultLang)
		if err != nil {
			return nil, fmt.Errorf("invalid default locale %q: %w", defaultLang, err)
		}
		fallback = tag
	}

	b := catalog.NewBuilder(catalog.Fallback(language.Thai))
	for key, byLang := range entries {
		for tag, text := range byLang {
			if err := b.SetString(tag, key, text); err != nil {
				return nil, fmt.Errorf("failed to add %s/%s: %w", tag, key, err)
			}
		}
	}

	// the fallback leads so that it wins ties and unmatched preferences
	tags := []language.Tag{fallback}
	for _, t := range Supported {
		if t != fallback {
			tags = append(tags, t)
		}
	}

	return &Translator{
		catalog:  b,
		tags:     tags,
		matcher:  language.NewMatcher(tags),
		fallback: fallback,
	}, nil
}

// Language picks the best supported language for an Accept-Language value
func (t *Translator) Language(acceptLanguage string) language.Tag {
	prefs, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(prefs) == 0 {
		return t.fallback
	}
	_, idx, conf := t.matcher.Match(prefs...)
	if conf == language.No {
		return t.fallback
	}
	return t.tags[idx]
}

// Printer returns a printer for the request's preferred language
func (t *Translator) Printer(r *http.Request) *message.Printer {
	return t.PrinterFor(t.Language(r.Header.Get("Accept-Language")))
}

// PrinterFor returns a printer bound to tag
func (t *Translator) PrinterFor(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag, message.Catalog(t.catalog))
}

// Text translates key for the request. Unknown keys are returned unchanged,
// which is how raw service messages pass through.
func (t *Translator) Text(r *http.Request, key string) string {
	return t.TextFor(t.Language(r.Header.Get("Accept-Language")), key)
}

// TextFor translates key into tag
func (t *Translator) TextFor(tag language.Tag, key string) string {
	if _, ok := entries[key]; !ok {
		return key
	}
	return t.PrinterFor(tag).Sprintf(key)
}

// Title capitalizes free text such as activity types for display
func Title(tag language.Tag, s string) string {
	return cases.Title(tag).String(s)
}
