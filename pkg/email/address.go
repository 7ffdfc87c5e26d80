package email

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/badoux/checkmail"
)

// Address is the canonical recipient type used everywhere above the storage
// boundary.
type Address struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

// String renders the address in RFC 5322 form: "Name <addr>" when a display
// name is present, otherwise the bare address.
func (a Address) String() string {
	if a.Name == "" {
		return a.Address
	}
	return fmt.Sprintf("%s <%s>", a.Name, a.Address)
}

// Validate checks the address syntax.
func (a Address) Validate() error {
	if err := checkmail.ValidateFormat(a.Address); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, a.Address)
	}
	return nil
}

// NormalizeRecipients collapses the accepted legacy input shapes into
// []Address. Accepted shapes:
//
//   - string: a single address, or a comma-separated list
//   - []string: list of addresses
//   - map[string]string: address → display name
//   - []Address / Address: passed through
//   - []any of JSON-decoded {"address":..,"name":..} objects or strings
//
// Empty entries are dropped. Order is preserved for list shapes; map shapes
// have no defined order.
func NormalizeRecipients(input any) ([]Address, error) {
	switch v := input.(type) {
	case nil:
		return nil, nil
	case Address:
		return []Address{v}, nil
	case []Address:
		return v, nil
	case string:
		return splitAddressList(v), nil
	case []string:
		out := make([]Address, 0, len(v))
		for _, s := range v {
			out = append(out, splitAddressList(s)...)
		}
		return out, nil
	case map[string]string:
		out := make([]Address, 0, len(v))
		for addr, name := range v {
			if strings.TrimSpace(addr) == "" {
				continue
			}
			out = append(out, Address{Address: strings.TrimSpace(addr), Name: name})
		}
		return out, nil
	case []any:
		out := make([]Address, 0, len(v))
		for _, item := range v {
			sub, err := NormalizeRecipients(item)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		}
		return out, nil
	case map[string]any:
		addr, _ := v["address"].(string)
		if addr == "" {
			return nil, fmt.Errorf("%w: object without address field", ErrUnsupportedRecipientShape)
		}
		name, _ := v["name"].(string)
		return []Address{{Address: addr, Name: name}}, nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedRecipientShape, input)
	}
}

// DecodeRecipients unmarshals a stored JSON recipient column into the
// canonical type. It tolerates both the object-array form and a plain JSON
// string holding a comma-separated list.
func DecodeRecipients(raw []byte) ([]Address, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var objs []Address
	if err := json.Unmarshal(raw, &objs); err == nil {
		return objs, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return splitAddressList(s), nil
	}
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err == nil {
		return NormalizeRecipients(m)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedRecipientShape, string(raw))
}

func splitAddressList(s string) []Address {
	var out []Address
	for part := range strings.SplitSeq(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		// "Name <addr>" form is preserved as-is in Address with the name split out.
		if i := strings.IndexByte(part, '<'); i >= 0 && strings.HasSuffix(part, ">") {
			name := strings.TrimSpace(part[:i])
			addr := strings.TrimSpace(part[i+1 : len(part)-1])
			out = append(out, Address{Address: addr, Name: name})
			continue
		}
		out = append(out, Address{Address: part})
	}
	return out
}

// SanitizeAddresses drops entries that fail syntax validation, returning the
// valid subset and the rejected addresses. Used when extracting default
// recipients from stored template configuration, where a bad entry must not
// fail the whole operation.
func SanitizeAddresses(addrs []Address) (valid []Address, dropped []string) {
	for _, a := range addrs {
		if a.Validate() != nil {
			dropped = append(dropped, a.Address)
			continue
		}
		valid = append(valid, a)
	}
	return valid, dropped
}
