// Copyright 2025 The QuickODM Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package i18n resolves message keys into human-readable text. The active
// language is selected by the QUICKODM_LANG environment variable and falls
// back to English for unknown languages and missing keys.
package i18n

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

// EnvVar selects the catalog language, e.g. "en" or "zh".
const EnvVar = "QUICKODM_LANG"

const fallback = "en"

var (
	mu       sync.RWMutex
	override string
)

// SetLanguage forces a language for the lifetime of the process, bypassing the
// environment variable. Passing "" restores environment lookup.
func SetLanguage(lang string) {
	mu.Lock()
	defer mu.Unlock()
	override = lang
}

// Language reports the active catalog language.
func Language() string {
	mu.RLock()
	o := override
	mu.RUnlock()
	if o != "" {
		return normalize(o)
	}
	return normalize(os.Getenv(EnvVar))
}

func normalize(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	// "zh_CN.UTF-8" style values reduce to their primary tag.
	if i := strings.IndexAny(lang, "_-."); i > 0 {
		lang = lang[:i]
	}
	if _, ok := catalogs[lang]; !ok {
		return fallback
	}
	return lang
}

// T resolves key in the active language and interpolates args with fmt verbs
// embedded in the catalog entry. Unknown keys return the key itself so a
// missing translation is visible rather than silent.
func T(key string, args ...any) string {
	lang := Language()
	msg, ok := catalogs[lang][key]
	if !ok {
		msg, ok = catalogs[fallback][key]
	}
	if !ok {
		return key
	}
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}
