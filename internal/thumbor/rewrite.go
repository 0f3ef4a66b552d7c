package thumbor

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/fpang/image-handler/internal/apierror"
)

// Rewriter applies a configured "/pattern/flags" substitution to incoming
// paths so that custom legacy URL layouts can be read as Thumbor paths.
type Rewriter struct {
	re       *regexp.Regexp
	global   bool
	template string
}

// NewRewriter compiles pattern, written as /source/flags. Supported flags
// are g, i, m and s; without g only the first match is replaced. The
// substitution may reference groups as $1, $<name> or $&.
func NewRewriter(pattern, substitution string) (*Rewriter, error) {
	if pattern == "" {
		return nil, apierror.New(http.StatusInternalServerError, apierror.CodeRewriteMatchPatternUndefined,
			"The REWRITE_MATCH_PATTERN variable is not set.")
	}
	if substitution == "" {
		return nil, apierror.New(http.StatusInternalServerError, apierror.CodeRewriteSubstitutionUndefined,
			"The REWRITE_SUBSTITUTION variable is not set.")
	}
	source, flags := splitPattern(pattern)
	var (
		prefix strings.Builder
		global bool
	)
	for _, f := range flags {
		switch f {
		case 'g':
			global = true
		case 'i', 'm', 's':
			prefix.WriteRune(f)
		case 'u', 'y':
		default:
			return nil, invalidPattern(pattern, fmt.Errorf("unsupported flag %q", f))
		}
	}
	expr := source
	if prefix.Len() > 0 {
		expr = "(?" + prefix.String() + ")" + source
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, invalidPattern(pattern, err)
	}
	return &Rewriter{re: re, global: global, template: convertTemplate(substitution)}, nil
}

// Rewrite returns path with the pattern substituted.
func (r *Rewriter) Rewrite(path string) string {
	if r.global {
		return r.re.ReplaceAllString(path, r.template)
	}
	loc := r.re.FindStringSubmatchIndex(path)
	if loc == nil {
		return path
	}
	var out []byte
	out = append(out, path[:loc[0]]...)
	out = r.re.ExpandString(out, r.template, path, loc)
	out = append(out, path[loc[1]:]...)
	return string(out)
}

// ParseCustomPath rewrites path with pattern and substitution.
func ParseCustomPath(path, pattern, substitution string) (string, error) {
	if path == "" {
		return "", apierror.New(http.StatusInternalServerError, apierror.CodePathUndefined,
			"The request path is not set.")
	}
	r, err := NewRewriter(pattern, substitution)
	if err != nil {
		return "", err
	}
	return r.Rewrite(path), nil
}

// splitPattern separates "/source/flags". A value without the slash
// delimiters is taken as a bare source with no flags.
func splitPattern(pattern string) (string, string) {
	if !strings.HasPrefix(pattern, "/") {
		return pattern, ""
	}
	i := strings.LastIndex(pattern, "/")
	if i == 0 {
		return pattern, ""
	}
	return pattern[1:i], pattern[i+1:]
}

// convertTemplate turns a $1 / $& / $<name> substitution into the ${n}
// form understood by regexp.Expand. Any other $ is literal.
func convertTemplate(sub string) string {
	var sb strings.Builder
	for i := 0; i < len(sub); i++ {
		c := sub[i]
		if c != '$' || i+1 >= len(sub) {
			if c == '$' {
				sb.WriteString("$$")
			} else {
				sb.WriteByte(c)
			}
			continue
		}
		next := sub[i+1]
		switch {
		case next == '$':
			sb.WriteString("$$")
			i++
		case next == '&':
			sb.WriteString("${0}")
			i++
		case next >= '0' && next <= '9':
			j := i + 2
			if j < len(sub) && sub[j] >= '0' && sub[j] <= '9' {
				j++
			}
			sb.WriteString("${" + sub[i+1:j] + "}")
			i = j - 1
		case next == '<':
			end := strings.IndexByte(sub[i+2:], '>')
			if end < 0 {
				sb.WriteString("$$")
				continue
			}
			sb.WriteString("${" + sub[i+2:i+2+end] + "}")
			i += 2 + end
		default:
			sb.WriteString("$$")
		}
	}
	return sb.String()
}

func invalidPattern(pattern string, err error) error {
	return &apierror.Error{
		Status:  http.StatusInternalServerError,
		Code:    apierror.CodeRewriteMatchPatternInvalid,
		Message: fmt.Sprintf("The REWRITE_MATCH_PATTERN %q could not be compiled.", pattern),
		Err:     err,
	}
}
