package student

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"errors"
)

var (
	salt = []byte("mahudhurio.core.student.qrtoken")

	// errors
	ErrInvalidQRToken = errors.New("invalid QR token")
)

// MakeQRToken derives the stable credential token encoded in a student's QR
// badge. The token is an HMAC over the student's identity, so re-printing a
// badge never changes it and a forged badge cannot produce a valid one.
func MakeQRToken(key []byte, stu Student) (string, error) {
	sig, err := sign(key, hashValue(stu))
	if err != nil {
		return "", err
	}
	return sig, nil
}

// VerifyQRToken checks that a scanned token belongs to the given student.
func VerifyQRToken(key []byte, stu Student, token string) error {
	if token == "" {
		return ErrInvalidQRToken
	}
	expected, err := MakeQRToken(key, stu)
	if err != nil {
		return err
	}
	if subtle.ConstantTimeCompare([]byte(expected), []byte(token)) == 0 {
		return ErrInvalidQRToken
	}
	return nil
}

func sign(key, val []byte) (string, error) {
	k := sha256.Sum256(append(salt, key...))
	h := hmac.New(sha256.New, k[:])
	if _, err := h.Write(val); err != nil {
		return "", err
	}
	enc := base32.StdEncoding.WithPadding(base32.NoPadding)
	return enc.EncodeToString(h.Sum(nil)[:20]), nil
}

func hashValue(stu Student) []byte {
	var val bytes.Buffer
	val.WriteString(stu.ID)
	val.WriteString(stu.InstitutionID)
	val.WriteString(stu.EnrollmentCode)
	return val.Bytes()
}
