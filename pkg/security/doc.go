/*
Package security encrypts the secrets the launcher keeps on disk.

SecretsManager seals data with AES-256-GCM, prepending a random nonce to the
ciphertext. The 32-byte key lives in a file next to the registry
(<dataDir>/launcher.key, mode 0600) and is generated on first use.

SudoCredentials stores the user's sudo password encrypted in the registry
settings bucket and implements the orchestrator's credential source:

	secrets, err := security.NewSecretsManagerFromKeyFile(filepath.Join(dataDir, security.KeyFile))
	if err != nil {
		return err
	}
	creds := security.NewSudoCredentials(store, secrets)

	if err := creds.SetSudoPassword(password); err != nil {
		return err
	}
	password, err := creds.DecryptedSudoPassword(ctx)

Decrypting before a password has been stored returns ErrPasswordNotSet.
*/
package security
