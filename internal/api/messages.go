package api

import (
	"errors"

	"golang.org/x/text/language"

	"PriceWatch/internal/domain"
	"PriceWatch/internal/usecase"
)

type messageKey string

const (
	msgUpdated  messageKey = "updated"
	msgRetrying messageKey = "retrying"
	msgFailed   messageKey = "failed"
	msgRemoved  messageKey = "removed"
	msgConfig   messageKey = "configuration"
)

var supportedLanguages = []language.Tag{language.English, language.Polish}

var languageMatcher = language.NewMatcher(supportedLanguages)

var messages = map[language.Tag]map[messageKey]string{
	language.English: {
		msgUpdated:  "Price updated successfully.",
		msgRetrying: "We could not read the price this time. It will be checked again automatically.",
		msgFailed:   "The price could not be checked after several attempts. Please review the listing.",
		msgRemoved:  "This listing is no longer available.",
		msgConfig:   "Price extraction is not configured correctly. Please contact support.",
	},
	language.Polish: {
		msgUpdated:  "Cena została zaktualizowana.",
		msgRetrying: "Tym razem nie udało się odczytać ceny. Sprawdzimy ją ponownie automatycznie.",
		msgFailed:   "Nie udało się sprawdzić ceny po kilku próbach. Sprawdź ogłoszenie.",
		msgRemoved:  "To ogłoszenie nie jest już dostępne.",
		msgConfig:   "Pobieranie cen jest źle skonfigurowane. Skontaktuj się z pomocą techniczną.",
	},
}

// negotiateLanguage picks the best supported language for an Accept-Language header.
func negotiateLanguage(header string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return language.English
	}
	_, idx, confidence := languageMatcher.Match(tags...)
	if confidence == language.No {
		return language.English
	}
	return supportedLanguages[idx]
}

func localize(lang language.Tag, key messageKey) string {
	if byKey, ok := messages[lang]; ok {
		if msg, ok := byKey[key]; ok {
			return msg
		}
	}
	return messages[language.English][key]
}

// statusMessageKey derives the user-facing message from the post-check status.
func statusMessageKey(status domain.ListingStatus, succeeded, configuration bool) messageKey {
	switch {
	case status == domain.StatusRemoved:
		return msgRemoved
	case status == domain.StatusError:
		return msgFailed
	case succeeded:
		return msgUpdated
	case configuration:
		return msgConfig
	default:
		return msgRetrying
	}
}

// LocalizedStatus negotiates a language from an Accept-Language style value and returns
// it with the user-facing message for a check outcome.
func LocalizedStatus(acceptLanguage string, out usecase.Outcome) (string, string) {
	lang := negotiateLanguage(acceptLanguage)
	key := statusMessageKey(out.Status, out.Succeeded(), errors.Is(out.Err, domain.ErrConfiguration))
	return lang.String(), localize(lang, key)
}
