package api

import (
	_ "embed"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

//go:embed openapi.yaml
var openAPISpec string

// Docs serves the OpenAPI document and a Swagger UI configured to
// authorize against the same OIDC issuer as the application.
type Docs struct {
	Issuer   string
	ClientID string
	Scopes   []string
}

// Register mounts the documentation routes on e.
func (d Docs) Register(e *echo.Echo) {
	e.GET("/openapi.yaml", d.SpecHandler)
	e.GET("/docs", d.SwaggerHandler)
	e.GET("/docs/oauth2-redirect.html", OAuthRedirectHandler)
}

// SpecHandler serves the embedded OpenAPI document with {oktaIssuer} replaced by the
// configured issuer.
func (d Docs) SpecHandler(c echo.Context) error {
	spec := strings.ReplaceAll(openAPISpec, "{oktaIssuer}", d.Issuer)
	return c.Blob(http.StatusOK, "application/yaml", []byte(spec))
}

func (d Docs) SwaggerHandler(c echo.Context) error {
	scopes, err := json.Marshal(d.Scopes)
	if err != nil {
		return err
	}
	redirect := c.Scheme() + "://" + c.Request().Host + "/docs/oauth2-redirect.html"
	html := strings.NewReplacer(
		"${SPEC_URL}", "/openapi.yaml",
		"${OAUTH2_REDIRECT}", redirect,
		"${CLIENT_ID}", d.ClientID,
		"${SCOPES}", string(scopes),
	).Replace(swaggerHTML)
	return c.HTML(http.StatusOK, html)
}

// OAuthRedirectHandler serves the OAuth2 redirect page used by Swagger UI.
func OAuthRedirectHandler(c echo.Context) error {
	return c.HTML(http.StatusOK, oauthRedirectHTML)
}

const swaggerHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <title>Clynto API</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist/swagger-ui-bundle.js"></script>
  <script>
  window.onload = function() {
    const ui = SwaggerUIBundle({
      url: "${SPEC_URL}",
      dom_id: '#swagger-ui',
      presets: [SwaggerUIBundle.presets.apis],
      layout: "BaseLayout",
      oauth2RedirectUrl: "${OAUTH2_REDIRECT}",
      persistAuthorization: true,
    });
    window.ui = ui;

    ui.initOAuth({
      clientId: "${CLIENT_ID}",
      scopes: ${SCOPES},
      usePkceWithAuthorizationCodeGrant: true,
    });
  }
  </script>
</body>
</html>`

const oauthRedirectHTML = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"/><title>OAuth2 Redirect</title></head>
<body>
<script>
if (window.opener && window.opener.swaggerUIRedirectCallback) {
  window.opener.swaggerUIRedirectCallback(window.location.href);
}
</script>
</body>
</html>`
