// Package secrets stores host-application secrets as sealed blobs.
//
// Values are encrypted with AES-256-GCM before they reach the backend; the
// sealing key lives in a key file created with a random key on first use.
// Two backends exist: a dependency-free file driver (one blob file per key)
// and a SQLite driver. Neither backend ever sees plaintext.
package secrets
