package api

import (
	"html/template"
	"net/http"

	"cv-builder-payments/internal/domain/model"
	"cv-builder-payments/internal/infra/i18n"
)

// receiptRenderer serves the bilingual post-payment page the gateway redirect
// lands on. Arabic renders right-to-left; a pending receipt refreshes itself
// until the server-to-server notification settles the transaction.
type receiptRenderer struct {
	translators map[string]*i18n.Translator
	frontendURL string
}

func newReceiptRenderer(frontendURL string) (*receiptRenderer, error) {
	translators := make(map[string]*i18n.Translator, 2)
	for _, lang := range []string{i18n.LangArabic, i18n.LangEnglish} {
		tr, err := i18n.NewTranslator(i18n.LocalesFS, lang)
		if err != nil {
			return nil, err
		}
		translators[lang] = tr
	}
	return &receiptRenderer{translators: translators, frontendURL: frontendURL}, nil
}

var receiptPage = template.Must(template.New("receipt").Parse(`<!doctype html>
<html lang="{{.Lang}}" dir="{{.Dir}}">
<head>
<meta charset="utf-8" />
<meta name="viewport" content="width=device-width,initial-scale=1" />
{{if .Refresh}}<meta http-equiv="refresh" content="3" />{{end}}
<title>{{.Title}}</title>
<style>
body{font-family:system-ui,Arial,sans-serif;margin:2rem;}
.card{max-width:560px;border:1px solid #ddd;border-radius:12px;padding:24px;margin:auto;}
.ok{color:#057a55} .fail{color:#b00020} .wait{color:#92610e}
.btn{display:inline-block;margin-top:16px;padding:10px 16px;border-radius:8px;border:1px solid #888;text-decoration:none}
.small{font-size:12px;color:#666;margin-top:12px}
</style>
</head>
<body>
<div class="card">
  <h2 class="{{.Class}}">{{.Title}}</h2>
  <p>{{.Body}}</p>
  {{if .Reference}}<p class="small">{{.Reference}}</p>{{end}}
  {{if .Support}}<p class="small">{{.Support}}</p>{{end}}
  {{if .BackURL}}<a class="btn" href="{{.BackURL}}">{{.Back}}</a>{{end}}
</div>
</body>
</html>`))

type receiptData struct {
	Lang      string
	Dir       string
	Class     string
	Refresh   bool
	Title     string
	Body      string
	Reference string
	Support   string
	Back      string
	BackURL   string
}

func (rr *receiptRenderer) render(w http.ResponseWriter, t *model.Transaction, langOverride string) {
	lang := t.Language
	if langOverride != "" {
		lang = langOverride
	}
	lang = i18n.Normalize(lang)
	tr := rr.translators[lang]

	var key, class string
	refresh := false
	switch t.Status {
	case model.PaymentStatusSuccess:
		key, class = "receipt.success", "ok"
	case model.PaymentStatusFailed:
		key, class = "receipt.failed", "fail"
	default:
		key, class = "receipt.pending", "wait"
		refresh = true
	}

	body := tr.T(key + ".body")
	if t.Status == model.PaymentStatusSuccess {
		body = tr.T(key+".body", t.PlanName)
	}

	rr.write(w, http.StatusOK, receiptData{
		Lang:      lang,
		Dir:       direction(lang),
		Class:     class,
		Refresh:   refresh,
		Title:     tr.T(key + ".title"),
		Body:      body,
		Reference: tr.T("receipt.reference", t.TrxReferenceNumber),
		Support:   tr.T("receipt.support"),
		Back:      tr.T("receipt.back"),
		BackURL:   rr.frontendURL,
	})
}

// renderUnknown is the page for a callback that matched no transaction.
func (rr *receiptRenderer) renderUnknown(w http.ResponseWriter, lang string) {
	lang = i18n.Normalize(lang)
	tr := rr.translators[lang]
	rr.write(w, http.StatusNotFound, receiptData{
		Lang:    lang,
		Dir:     direction(lang),
		Class:   "fail",
		Title:   tr.T("receipt.failed.title"),
		Body:    tr.T("receipt.support"),
		Back:    tr.T("receipt.back"),
		BackURL: rr.frontendURL,
	})
}

func (rr *receiptRenderer) write(w http.ResponseWriter, code int, data receiptData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	_ = receiptPage.Execute(w, data)
}

func direction(lang string) string {
	if lang == i18n.LangArabic {
		return "rtl"
	}
	return "ltr"
}
