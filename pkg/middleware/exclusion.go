package middleware

import (
	"fmt"
	"net/http"
	"strings"
)

// wildcardSegment はパスパターン中でちょうど1セグメントにマッチする記号。
const wildcardSegment = "*"

// ExclusionRule は認証を必要としない (HTTPメソッド, パスパターン) の組。
type ExclusionRule struct {
	// Method はHTTPメソッド。大文字小文字は区別しない。
	Method string
	// Pattern はパスパターン。"*" のセグメントは任意の1セグメントにマッチする。
	Pattern string
}

// ParseExclusionRule は "GET /posts/*" 形式の文字列をルールに変換する。
func ParseExclusionRule(s string) (ExclusionRule, error) {
	method, pattern, ok := strings.Cut(strings.TrimSpace(s), " ")
	pattern = strings.TrimSpace(pattern)
	if !ok || method == "" || pattern == "" {
		return ExclusionRule{}, fmt.Errorf("除外ルールは \"METHOD /path\" 形式で指定してください: %q", s)
	}
	if !strings.HasPrefix(pattern, "/") {
		return ExclusionRule{}, fmt.Errorf("除外ルールのパスは / で始まる必要があります: %q", s)
	}
	return ExclusionRule{Method: strings.ToUpper(method), Pattern: pattern}, nil
}

// String は "METHOD /path" 形式を返す。
func (r ExclusionRule) String() string {
	return r.Method + " " + r.Pattern
}

// matches はメソッドとパスがこのルールに一致するかを判定する。
func (r ExclusionRule) matches(method string, segments []string) bool {
	if !strings.EqualFold(r.Method, method) {
		return false
	}

	patternSegments := strings.Split(r.Pattern, "/")
	if len(patternSegments) != len(segments) {
		return false
	}
	for i, p := range patternSegments {
		if p == wildcardSegment {
			if segments[i] == "" {
				return false
			}
			continue
		}
		if p != segments[i] {
			return false
		}
	}
	return true
}

// Exclusions は起動時に一度だけ構築される除外ルールの一覧。
// 構築後は読み取りのみ行うため、並行に呼び出しても同期は不要。
type Exclusions struct {
	rules []ExclusionRule
}

// NewExclusions はルールの一覧からExclusionsを生成する。
func NewExclusions(rules ...ExclusionRule) Exclusions {
	return Exclusions{rules: append([]ExclusionRule(nil), rules...)}
}

// DefaultExclusions は公開エンドポイントの許可リストを返す。
func DefaultExclusions() Exclusions {
	return NewExclusions(
		ExclusionRule{Method: http.MethodPost, Pattern: "/auth"},
		ExclusionRule{Method: http.MethodGet, Pattern: "/posts"},
		ExclusionRule{Method: http.MethodGet, Pattern: "/posts/*"},
		ExclusionRule{Method: http.MethodGet, Pattern: "/replies/*"},
		ExclusionRule{Method: http.MethodPost, Pattern: "/users"},
		ExclusionRule{Method: http.MethodPost, Pattern: "/users/availability/*"},
		ExclusionRule{Method: http.MethodPost, Pattern: "/users/image"},
	)
}

// Rules はルールの複製を返す。
func (e Exclusions) Rules() []ExclusionRule {
	return append([]ExclusionRule(nil), e.rules...)
}

// IsExempt はリクエストが認証をスキップできるかを判定する。
// いずれかのルールに一致すればtrueを返す。
func (e Exclusions) IsExempt(method, path string) bool {
	segments := strings.Split(path, "/")
	for _, r := range e.rules {
		if r.matches(method, segments) {
			return true
		}
	}
	return false
}
