// Package validation contiene las reglas de forma de los identificadores que
// llegan de afuera (rutas, CLI, archivos).
package validation

import "regexp"

// Tenant IDs: empiezan con [a-z0-9], luego [a-z0-9_.-], 1..64 chars.
// Mayúsculas se aceptan: el ID es opaco, no un slug.
var tenantIDRe = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.\-]{0,63}$`)

// ValidTenantID rechaza vacíos, separadores de path y "." / "..".
func ValidTenantID(id string) bool {
	return tenantIDRe.MatchString(id) && id != "." && id != ".."
}

// Credential IDs son opacos (base64url de WebAuthn o UUID), sin espacios ni
// separadores de path.
var credentialIDRe = regexp.MustCompile(`^[A-Za-z0-9_\-=+]{1,512}$`)

func ValidCredentialID(id string) bool {
	return credentialIDRe.MatchString(id)
}
