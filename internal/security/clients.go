package security

import "crypto/subtle"

const (
	PermCheckoutRead  = "checkout.read"
	PermCheckoutWrite = "checkout.write"
)

// Client is a registered caller of the checkout API.
type Client struct {
	ID      string
	Secret  string
	Perms   []string
	Enabled bool
}

// Clients is the static registry. The parent portal places orders; the
// admin console only reads them.
var Clients = map[string]Client{
	"parent-portal": {ID: "parent-portal", Secret: "parent-portal-secret", Perms: []string{PermCheckoutRead, PermCheckoutWrite}, Enabled: true},
	"admin-console": {ID: "admin-console", Secret: "admin-console-secret", Perms: []string{PermCheckoutRead}, Enabled: true},
	"svc-reports":   {ID: "svc-reports", Secret: "reports-secret", Perms: []string{PermCheckoutRead}, Enabled: false},
}

func Authenticate(id, secret string) (Client, bool) {
	cl, ok := Clients[id]
	if !ok || !cl.Enabled {
		return Client{}, false
	}
	if subtle.ConstantTimeCompare([]byte(cl.Secret), []byte(secret)) != 1 {
		return Client{}, false
	}
	return cl, true
}
