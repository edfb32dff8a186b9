package records

import (
	"bytes"
)

const (
	pendingVersionV1   byte = 1
	codeVersionV1      byte = 1
	refreshVersionV1   byte = 1
	challengeVersionV1 byte = 1
)

// Subject is the stored form of an authenticated subject. Properties hold
// the JSON encoding of the validated property map.
type Subject struct {
	Type       string
	Properties []byte
}

// Pending is an authorization request awaiting credential verification.
type Pending struct {
	ClientID      string
	RedirectURI   string
	ResponseType  string
	State         string
	Scope         string
	ProviderID    string
	ProviderState []byte
	CreatedAt     int64
	ExpiresAt     int64
}

// Code is an issued authorization code. A code that was redeemed is absent.
type Code struct {
	Subject     Subject
	ClientID    string
	RedirectURI string
	Scope       string
	ExpiresAt   int64
}

// Refresh is the server side of a rotating refresh token.
type Refresh struct {
	SecretHash [32]byte
	Subject    Subject
	ClientID   string
	Scope      string
	ExpiresAt  int64
}

// Purpose says which flow a Challenge belongs to.
type Purpose uint8

const (
	PurposeLogin Purpose = iota + 1
	PurposeRegister
	PurposeReset
)

// Challenge is the provider state of an outstanding one-time code.
type Challenge struct {
	Purpose      Purpose
	Attempts     uint16
	ExpiresAt    int64
	CodeHash     [32]byte
	Email        string
	PasswordHash string
}

func EncodePending(p *Pending) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(pendingVersionV1)
	writeInt64(&buf, p.CreatedAt)
	writeInt64(&buf, p.ExpiresAt)

	for _, f := range []struct{ name, v string }{
		{"client id", p.ClientID},
		{"redirect uri", p.RedirectURI},
		{"response type", p.ResponseType},
		{"state", p.State},
		{"scope", p.Scope},
		{"provider id", p.ProviderID},
	} {
		if err := writeString16(&buf, f.name, f.v); err != nil {
			return nil, err
		}
	}
	if err := writeBytes32(&buf, "provider state", p.ProviderState); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodePending(data []byte) (*Pending, error) {
	r, err := newReader(data, pendingVersionV1)
	if err != nil {
		return nil, err
	}

	p := &Pending{}
	p.CreatedAt = r.readInt64()
	p.ExpiresAt = r.readInt64()
	p.ClientID = r.readString16()
	p.RedirectURI = r.readString16()
	p.ResponseType = r.readString16()
	p.State = r.readString16()
	p.Scope = r.readString16()
	p.ProviderID = r.readString16()
	p.ProviderState = r.readBytes32()

	if err := r.done(); err != nil {
		return nil, err
	}
	return p, nil
}

func writeSubject(buf *bytes.Buffer, s Subject) error {
	if err := writeString16(buf, "subject type", s.Type); err != nil {
		return err
	}
	return writeBytes32(buf, "subject properties", s.Properties)
}

func readSubject(r *reader) Subject {
	return Subject{
		Type:       r.readString16(),
		Properties: r.readBytes32(),
	}
}

func EncodeCode(c *Code) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(codeVersionV1)
	writeInt64(&buf, c.ExpiresAt)

	if err := writeSubject(&buf, c.Subject); err != nil {
		return nil, err
	}
	if err := writeString16(&buf, "client id", c.ClientID); err != nil {
		return nil, err
	}
	if err := writeString16(&buf, "redirect uri", c.RedirectURI); err != nil {
		return nil, err
	}
	if err := writeString16(&buf, "scope", c.Scope); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeCode(data []byte) (*Code, error) {
	r, err := newReader(data, codeVersionV1)
	if err != nil {
		return nil, err
	}

	c := &Code{}
	c.ExpiresAt = r.readInt64()
	c.Subject = readSubject(r)
	c.ClientID = r.readString16()
	c.RedirectURI = r.readString16()
	c.Scope = r.readString16()

	if err := r.done(); err != nil {
		return nil, err
	}
	return c, nil
}

func EncodeRefresh(rec *Refresh) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(refreshVersionV1)
	writeInt64(&buf, rec.ExpiresAt)
	buf.Write(rec.SecretHash[:])

	if err := writeSubject(&buf, rec.Subject); err != nil {
		return nil, err
	}
	if err := writeString16(&buf, "client id", rec.ClientID); err != nil {
		return nil, err
	}
	if err := writeString16(&buf, "scope", rec.Scope); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeRefresh(data []byte) (*Refresh, error) {
	r, err := newReader(data, refreshVersionV1)
	if err != nil {
		return nil, err
	}

	rec := &Refresh{}
	rec.ExpiresAt = r.readInt64()
	r.readFixed(rec.SecretHash[:])
	rec.Subject = readSubject(r)
	rec.ClientID = r.readString16()
	rec.Scope = r.readString16()

	if err := r.done(); err != nil {
		return nil, err
	}
	return rec, nil
}

func EncodeChallenge(c *Challenge) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(challengeVersionV1)
	buf.WriteByte(byte(c.Purpose))
	buf.WriteByte(byte(c.Attempts >> 8))
	buf.WriteByte(byte(c.Attempts))
	writeInt64(&buf, c.ExpiresAt)
	buf.Write(c.CodeHash[:])

	if err := writeString16(&buf, "email", c.Email); err != nil {
		return nil, err
	}
	if err := writeString16(&buf, "password hash", c.PasswordHash); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func DecodeChallenge(data []byte) (*Challenge, error) {
	r, err := newReader(data, challengeVersionV1)
	if err != nil {
		return nil, err
	}

	c := &Challenge{}
	c.Purpose = Purpose(r.readByte())
	c.Attempts = r.readUint16()
	c.ExpiresAt = r.readInt64()
	r.readFixed(c.CodeHash[:])
	c.Email = r.readString16()
	c.PasswordHash = r.readString16()

	if err := r.done(); err != nil {
		return nil, err
	}
	if c.Purpose < PurposeLogin || c.Purpose > PurposeReset {
		return nil, ErrCorrupt
	}
	return c, nil
}
