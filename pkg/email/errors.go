package email

import "errors"

var (
	// ErrInvalidAddress indicates an address that fails RFC 5322 format validation.
	ErrInvalidAddress = errors.New("email: invalid address")

	// ErrUnsupportedRecipientShape indicates recipient input that is none of the
	// accepted legacy shapes.
	ErrUnsupportedRecipientShape = errors.New("email: unsupported recipient shape")

	// ErrNoBlobOpener indicates a storage-disk attachment was registered but no
	// blob opener is configured to resolve it.
	ErrNoBlobOpener = errors.New("email: no blob opener configured")

	// ErrUnknownAttachmentType indicates a persisted attachment descriptor with
	// an unrecognized type tag.
	ErrUnknownAttachmentType = errors.New("email: unknown attachment type")
)
