package sharedsecret

import (
	"encoding/binary"
	"fmt"
	"time"
)

// logicalPayload is the single canonical record stored once per shared
// secret, inside the Layer-2 tracking row's EncryptedPayload.
type logicalPayload struct {
	SenderEmail     string
	ReceiverEmail   string
	EncryptedSecret []byte
	KeyMaterial     []byte // 44 bytes
	OTP             string // "" when not OTP-protected
	CreatedAt       time.Time
	ReferenceHash   []byte // 16 bytes
	MaxReads        int
}

func serializeLogicalPayload(p logicalPayload) []byte {
	senderBytes := []byte(p.SenderEmail)
	receiverBytes := []byte(p.ReceiverEmail)
	otpBytes := []byte(p.OTP)

	out := make([]byte, 0, 2+len(senderBytes)+2+len(receiverBytes)+4+len(p.EncryptedSecret)+44+1+len(otpBytes)+8+16+8)

	out = appendU16(out, uint16(len(senderBytes)))
	out = append(out, senderBytes...)

	out = appendU16(out, uint16(len(receiverBytes)))
	out = append(out, receiverBytes...)

	out = appendU32(out, uint32(len(p.EncryptedSecret)))
	out = append(out, p.EncryptedSecret...)

	out = append(out, p.KeyMaterial...)

	out = append(out, byte(len(otpBytes)))
	out = append(out, otpBytes...)

	out = appendI64(out, p.CreatedAt.Unix())
	out = append(out, p.ReferenceHash...)
	out = appendI64(out, int64(p.MaxReads))

	return out
}

func parseLogicalPayload(data []byte) (logicalPayload, error) {
	var p logicalPayload
	r := &byteReader{data: data}

	senderLen, err := r.readU16()
	if err != nil {
		return p, err
	}
	sender, err := r.readBytes(int(senderLen))
	if err != nil {
		return p, err
	}
	p.SenderEmail = string(sender)

	receiverLen, err := r.readU16()
	if err != nil {
		return p, err
	}
	receiver, err := r.readBytes(int(receiverLen))
	if err != nil {
		return p, err
	}
	p.ReceiverEmail = string(receiver)

	secretLen, err := r.readU32()
	if err != nil {
		return p, err
	}
	secret, err := r.readBytes(int(secretLen))
	if err != nil {
		return p, err
	}
	p.EncryptedSecret = secret

	keyMaterial, err := r.readBytes(44)
	if err != nil {
		return p, err
	}
	p.KeyMaterial = keyMaterial

	otpLen, err := r.readByte()
	if err != nil {
		return p, err
	}
	otp, err := r.readBytes(int(otpLen))
	if err != nil {
		return p, err
	}
	p.OTP = string(otp)

	createdAt, err := r.readI64()
	if err != nil {
		return p, err
	}
	p.CreatedAt = time.Unix(createdAt, 0)

	referenceHash, err := r.readBytes(16)
	if err != nil {
		return p, err
	}
	p.ReferenceHash = referenceHash

	maxReads, err := r.readI64()
	if err != nil {
		return p, err
	}
	p.MaxReads = int(maxReads)

	return p, nil
}

type byteReader struct {
	data []byte
	pos  int
}

func (r *byteReader) readBytes(n int) ([]byte, error) {
	if r.pos+n > len(r.data) {
		return nil, fmt.Errorf("sharedsecret: payload truncated")
	}
	out := r.data[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

func (r *byteReader) readByte() (byte, error) {
	b, err := r.readBytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *byteReader) readU16() (uint16, error) {
	b, err := r.readBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *byteReader) readU32() (uint32, error) {
	b, err := r.readBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *byteReader) readI64() (int64, error) {
	b, err := r.readBytes(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

func appendU16(dst []byte, v uint16) []byte {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, v)
	return append(dst, buf...)
}

func appendU32(dst []byte, v uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, v)
	return append(dst, buf...)
}

func appendI64(dst []byte, v int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(v))
	return append(dst, buf...)
}
