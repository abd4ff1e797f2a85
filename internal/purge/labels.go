package purge

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

const (
	labelPurgeAll     = "Purge All Cache"
	labelPurgeCurrent = "Purge Current Page"
)

// supportedLanguages lists catalog languages; the first entry is the fallback
var supportedLanguages = []language.Tag{language.English, language.German, language.French}

var translations = map[language.Tag]map[string]string{
	language.German: {
		labelPurgeAll:     "Gesamten Cache leeren",
		labelPurgeCurrent: "Aktuelle Seite leeren",
	},
	language.French: {
		labelPurgeAll:     "Vider tout le cache",
		labelPurgeCurrent: "Vider la page actuelle",
	},
}

// Labels translates trigger link labels
type Labels struct {
	catalog *catalog.Builder
	matcher language.Matcher
}

// NewLabels builds the label catalog
func NewLabels() (*Labels, error) {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for _, key := range []string{labelPurgeAll, labelPurgeCurrent} {
		if err := b.SetString(language.English, key, key); err != nil {
			return nil, err
		}
	}
	for tag, msgs := range translations {
		for key, msg := range msgs {
			if err := b.SetString(tag, key, msg); err != nil {
				return nil, err
			}
		}
	}
	return &Labels{catalog: b, matcher: language.NewMatcher(supportedLanguages)}, nil
}

// For returns the label paired with scope, in the best language for acceptLanguage
func (l *Labels) For(scope Scope, acceptLanguage string) string {
	key := labelPurgeCurrent
	if scope == ScopeAll {
		key = labelPurgeAll
	}

	tag := supportedLanguages[0]
	if acceptLanguage != "" {
		if prefs, _, err := language.ParseAcceptLanguage(acceptLanguage); err == nil && len(prefs) > 0 {
			_, idx, conf := l.matcher.Match(prefs...)
			if conf != language.No {
				tag = supportedLanguages[idx]
			}
		}
	}

	p := message.NewPrinter(tag, message.Catalog(l.catalog))
	return p.Sprintf(key)
}
