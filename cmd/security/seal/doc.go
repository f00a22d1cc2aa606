// Package seal encrypts values before they reach durable storage.
//
// A passphrase is stretched with Argon2id into a 256-bit key and values are
// sealed with XChaCha20-Poly1305. Each Sealer derives its key once for its own
// random salt; blobs written under other salts are opened by deriving (and
// caching) the matching key.
//
// Blob format: "sealed:v1:" + base64url(salt || nonce || ciphertext).
package seal
