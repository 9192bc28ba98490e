package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
)

// Candidate is an instance discovered for deletion.
type Candidate struct {
	// Class is the policy class the candidate is resolved against.
	Class string `json:"class"`

	// Name is the instance key.
	Name string `json:"name"`

	// Partition is the partition the instance lives in.
	Partition string `json:"partition"`
}

// Enumerator discovers the deletable sub-objects of a class by querying the
// remote system. Candidates may name derived classes.
type Enumerator interface {
	Enumerate(ctx context.Context, lister Lister, partition string, declared *Instances) ([]Candidate, error)
}

// RemoteItem is one element of a remote collection listing.
type RemoteItem struct {
	Name      string `json:"name"`
	Partition string `json:"partition,omitempty"`
	FullPath  string `json:"fullPath"`
}

// decodeItems reads a collection listing. Anything other than a JSON array
// yields no items; elements that are not objects are skipped.
func decodeItems(raw json.RawMessage) []RemoteItem {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return nil
	}

	items := make([]RemoteItem, 0, len(elems))
	for _, elem := range elems {
		if !isJSONObject(elem) {
			continue
		}
		var item RemoteItem
		if err := json.Unmarshal(elem, &item); err != nil {
			continue
		}
		items = append(items, item)
	}
	return items
}

const (
	authRadius = "radius"
	authTacacs = "tacacs"
	authLDAP   = "ldap"

	authProfileName = "system-auth"
	ldapFilePrefix  = "do_ldap"
)

var (
	authProfileTypes  = []string{authRadius, authTacacs, authLDAP}
	radiusServerNames = []string{"system_auth_name1", "system_auth_name2"}
)

// AuthEnumerator discovers remote authentication objects for the declared
// Authentication subtypes. Profiles are looked up first, then the radius
// servers and ldap certificate files that depend on them. Children are only
// reported when their parent profile exists.
type AuthEnumerator struct{}

// Enumerate implements Enumerator.
func (AuthEnumerator) Enumerate(ctx context.Context, lister Lister, partition string, declared *Instances) ([]Candidate, error) {
	var out []Candidate
	present := make(map[string]bool, len(authProfileTypes))
	profilePath := fullPath(partition, authProfileName)

	for _, kind := range authProfileTypes {
		if !declared.Has(kind) {
			continue
		}
		raw, err := lister.List(ctx, "/tm/auth/"+kind)
		if err != nil {
			return nil, err
		}
		for _, item := range decodeItems(raw) {
			if item.FullPath == profilePath {
				present[kind] = true
				out = append(out, Candidate{Class: kind, Name: authProfileName, Partition: partition})
				break
			}
		}
	}

	if declared.Has(authRadius) {
		raw, err := lister.List(ctx, "/tm/auth/radius-server")
		if err != nil {
			return nil, err
		}
		if present[authRadius] {
			out = append(out, matchItems(raw, ClassRadiusServer, partition, func(name string) bool {
				for _, known := range radiusServerNames {
					if name == known {
						return true
					}
				}
				return false
			})...)
		}
	}

	if declared.Has(authLDAP) {
		for _, class := range []string{ClassSSLCert, ClassSSLKey} {
			raw, err := lister.List(ctx, "/tm/sys/file/"+class)
			if err != nil {
				return nil, err
			}
			if present[authLDAP] {
				out = append(out, matchItems(raw, class, partition, func(name string) bool {
					return strings.HasPrefix(name, ldapFilePrefix)
				})...)
			}
		}
	}

	return out, nil
}

// matchItems keeps listed items in partition whose name satisfies keep.
func matchItems(raw json.RawMessage, class, partition string, keep func(string) bool) []Candidate {
	prefix := "/" + partition + "/"
	var out []Candidate
	for _, item := range decodeItems(raw) {
		if !strings.HasPrefix(item.FullPath, prefix) {
			continue
		}
		name := strings.TrimPrefix(item.FullPath, prefix)
		if keep(name) {
			out = append(out, Candidate{Class: class, Name: name, Partition: partition})
		}
	}
	return out
}

func fullPath(partition, name string) string {
	return "/" + partition + "/" + name
}
