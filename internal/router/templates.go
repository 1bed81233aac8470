package router

import (
	"fmt"
	"html/template"
	"net/url"
	"path/filepath"
	"time"

	"github.com/gin-contrib/multitemplate"
)

// views maps the names handlers render to files under views/.
var views = []string{
	"error.html",
	"auth/login.html",
	"auth/signup.html",
	"auth/forgot_password.html",
	"auth/reset_password.html",
	"oauth/invitation.html",
	"user/show.html",
	"admin/users.html",
	"stats/dashboard.html",
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"dict": func(values ...interface{}) (map[string]interface{}, error) {
			if len(values)%2 != 0 {
				return nil, fmt.Errorf("invalid dict call")
			}
			dict := make(map[string]interface{}, len(values)/2)
			for i := 0; i < len(values); i += 2 {
				key, ok := values[i].(string)
				if !ok {
					return nil, fmt.Errorf("dict keys must be strings")
				}
				dict[key] = values[i+1]
			}
			return dict, nil
		},
		"add": func(a, b int) int {
			return a + b
		},
		"formatDate": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("02/01/2006")
		},
		"timeAgo": func(t time.Time) string {
			seconds := int(time.Since(t).Seconds())
			switch {
			case seconds < 60:
				return "just now"
			case seconds < 3600:
				return fmt.Sprintf("%d minutes ago", seconds/60)
			case seconds < 86400:
				return fmt.Sprintf("%d hours ago", seconds/3600)
			case seconds < 2592000:
				return fmt.Sprintf("%d days ago", seconds/86400)
			}
			return t.Format("02/01/2006")
		},
		// barWidth scales a histogram bar to a percentage of the tallest one
		"barWidth": func(count, max int) int {
			if max <= 0 {
				return 0
			}
			return count * 100 / max
		},
		"urlquery": func(s string) string {
			return url.QueryEscape(s)
		},
	}
}

// LoadTemplates builds one template set per view, each wrapped in the layouts.
func LoadTemplates(templatesDir string) (multitemplate.Renderer, error) {
	r := multitemplate.NewRenderer()

	layouts, err := filepath.Glob(filepath.Join(templatesDir, "layouts", "*.html"))
	if err != nil {
		return nil, err
	}
	if len(layouts) == 0 {
		return nil, fmt.Errorf("no layouts found in %s", templatesDir)
	}

	funcMap := templateFuncs()
	for _, view := range views {
		files := append(append([]string{}, layouts...), filepath.Join(templatesDir, "views", view))
		tmpl, err := template.New(filepath.Base(files[0])).Funcs(funcMap).ParseFiles(files...)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", view, err)
		}
		r.Add(view, tmpl)
	}
	return r, nil
}
