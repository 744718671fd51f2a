package gateway

import "net/http"

// App describes an application the user can switch to.
type App struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Href     string   `json:"href"`
	Features []string `json:"features"`
}

// appList puts the own app first, followed by the extra apps. Features are
// never null on the wire.
func appList(own App, extra []App) []App {
	apps := make([]App, 0, len(extra)+1)
	for _, app := range append([]App{own}, extra...) {
		if app.Features == nil {
			app.Features = []string{}
		}
		apps = append(apps, app)
	}

	return apps
}

func (g *gateway) apps(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, g.appList)
}
