package models

import (
	"panel-bridge/utils"
)

// Credential is a decrypted panel API credential pair. It only ever exists
// in memory; the persisted form is the encrypted Device.APISecret.
type Credential struct {
	Username string
	Secret   string
}

// Credential decrypts the device's stored API credentials. It returns nil
// when no credentials are stored or decryption fails: an unreadable secret
// is treated the same as an absent one, not as a fatal error.
func (d *Device) Credential(encryptionKey string) *Credential {
	if d.APIUsername == "" || d.APISecret == "" {
		return nil
	}
	secret, err := utils.DecryptString(encryptionKey, d.APISecret)
	if err != nil {
		return nil
	}
	return &Credential{Username: d.APIUsername, Secret: secret}
}

// SetCredential encrypts and stores a credential pair on the device record.
func (d *Device) SetCredential(encryptionKey string, cred Credential) error {
	encrypted, err := utils.EncryptString(encryptionKey, cred.Secret)
	if err != nil {
		return err
	}
	d.APIUsername = cred.Username
	d.APISecret = encrypted
	return nil
}
