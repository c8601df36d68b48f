//go:build !integration

package i18n_test

import (
	"strings"
	"testing"

	"cv-builder-payments/internal/infra/i18n"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"ar": "ar",
		"en": "en",
		"fr": "en",
		"AR": "en",
		"":   "en",
	}
	for in, want := range cases {
		if got := i18n.Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTranslator(t *testing.T) {
	en, err := i18n.NewTranslator(i18n.LocalesFS, i18n.LangEnglish)
	if err != nil {
		t.Fatalf("english locale: %v", err)
	}
	ar, err := i18n.NewTranslator(i18n.LocalesFS, i18n.LangArabic)
	if err != nil {
		t.Fatalf("arabic locale: %v", err)
	}

	t.Run("formats arguments", func(t *testing.T) {
		got := en.T("receipt.success.body", "Flex Pack")
		if !strings.Contains(got, "Flex Pack") {
			t.Fatalf("body = %q", got)
		}
	})

	t.Run("unknown keys come back verbatim", func(t *testing.T) {
		if got := en.T("receipt.refund.title"); got != "receipt.refund.title" {
			t.Fatalf("missing key = %q", got)
		}
	})

	t.Run("both locales cover the receipt keys", func(t *testing.T) {
		keys := []string{
			"receipt.success.title", "receipt.failed.title", "receipt.pending.title",
			"receipt.reference", "receipt.support", "receipt.back",
		}
		for _, k := range keys {
			if en.T(k) == k {
				t.Errorf("english missing %q", k)
			}
			if ar.T(k) == k {
				t.Errorf("arabic missing %q", k)
			}
		}
	})

	t.Run("unknown locale fails to load", func(t *testing.T) {
		if _, err := i18n.NewTranslator(i18n.LocalesFS, "de"); err == nil {
			t.Fatal("expected error for missing locale file")
		}
	})
}
