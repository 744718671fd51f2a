package config

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToCookie(t *testing.T) {
	tests := []struct {
		name     string
		template CookieTemplate
		value    string
		want     *http.Cookie
	}{
		{
			name: "defaults",
			template: CookieTemplate{
				Name: "foo",
			},
			want: &http.Cookie{
				Name: "foo",
			},
		}, {
			name: "session",
			template: CookieTemplate{
				Name:     "myapp.sid",
				Path:     "/",
				Secure:   true,
				SameSite: CookieSameSiteLax,
				HTTPOnly: true,
			},
			value: "abc.sig",
			want: &http.Cookie{
				Name:     "myapp.sid",
				Value:    "abc.sig",
				Path:     "/",
				Secure:   true,
				SameSite: http.SameSiteLaxMode,
				HttpOnly: true,
			},
		}, {
			name: "strict with max age",
			template: CookieTemplate{
				Name:     "sid",
				MaxAge:   3600,
				Path:     "/app/",
				Domain:   "example.com",
				SameSite: CookieSameSiteStrict,
			},
			want: &http.Cookie{
				Name:     "sid",
				MaxAge:   3600,
				Path:     "/app/",
				Domain:   "example.com",
				SameSite: http.SameSiteStrictMode,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.template.ToCookie(tt.value)
			assert.Equal(t, tt.want.Name, c.Name)
			assert.Equal(t, tt.want.Value, c.Value)
			assert.Equal(t, tt.want.MaxAge, c.MaxAge)
			assert.Equal(t, tt.want.Path, c.Path)
			assert.Equal(t, tt.want.Domain, c.Domain)
			assert.Equal(t, tt.want.Secure, c.Secure)
			assert.Equal(t, tt.want.SameSite, c.SameSite)
			assert.Equal(t, tt.want.HttpOnly, c.HttpOnly)
		})
	}
}

func TestForApp(t *testing.T) {
	t.Run("Empty template", func(t *testing.T) {
		got := CookieTemplate{}.ForApp("myapp")
		assert.Equal(t, "myapp.sid", got.Name)
		assert.Equal(t, "/", got.Path)
		assert.Equal(t, CookieSameSiteLax, got.SameSite)
	})

	t.Run("Custom name with placeholder", func(t *testing.T) {
		got := CookieTemplate{Name: "__Host-{app}", Path: "/x", SameSite: CookieSameSiteStrict}.ForApp("myapp")
		assert.Equal(t, "__Host-myapp", got.Name)
		assert.Equal(t, "/x", got.Path)
		assert.Equal(t, CookieSameSiteStrict, got.SameSite)
	})
}

func TestExpired(t *testing.T) {
	ct := CookieTemplate{Name: "myapp.sid", Path: "/", HTTPOnly: true}
	c := ct.Expired()
	assert.Equal(t, "myapp.sid", c.Name)
	assert.Empty(t, c.Value)
	assert.Equal(t, -1, c.MaxAge)
	assert.True(t, c.HttpOnly)
}
