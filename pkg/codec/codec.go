// Package codec implements the deterministic binary encoding of a
// snapshot: file fingerprints, the symbol table, and the unresolved
// table (spec.md §6). The encoding is length-prefixed, little-endian,
// and documented here rather than delegated to a general-purpose
// serialization library, since none in the retrieval pack targets this
// kind of bespoke, ordering-sensitive binary format (see DESIGN.md).
//
// Layout: the magic bytes "CMSH", one format-version byte (1), then
// three sections in order. Every count and integer is a little-endian
// uint32; a string is its byte length followed by its bytes; a set is
// a count followed by its strings in sorted order.
//   - fingerprints: count, then (path, fingerprint) per entry
//   - symbols: count, then per entry identity, name, node_kind,
//     file_path, line_number, start_byte, end_byte, dependencies set,
//     used_by set
//   - unresolved: count, then per entry caller and a count followed by
//     the raw names in insertion order
//
// Map keys are written in sorted order at every level.
package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/autonoxy/contextmesh/pkg/cmerrors"
	"github.com/autonoxy/contextmesh/pkg/symbol"
)

var magic = [4]byte{'C', 'M', 'S', 'H'}

const formatVersion = 1

// Snapshot is the full persisted state of an index.
type Snapshot struct {
	Fingerprints map[string]string
	Symbols      map[string]*symbol.Symbol
	Unresolved   map[string][]string
}

// Encode serializes snap into the documented binary format. Map
// iteration is non-deterministic in Go, so every level is written in
// sorted-key order to keep the output reproducible for identical
// logical content.
func Encode(snap Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(magic[:])
	buf.WriteByte(formatVersion)

	if err := encodeFingerprints(&buf, snap.Fingerprints); err != nil {
		return nil, cmerrors.New(cmerrors.SerializationFailure, "codec.Encode", err)
	}
	if err := encodeSymbols(&buf, snap.Symbols); err != nil {
		return nil, cmerrors.New(cmerrors.SerializationFailure, "codec.Encode", err)
	}
	if err := encodeUnresolved(&buf, snap.Unresolved); err != nil {
		return nil, cmerrors.New(cmerrors.SerializationFailure, "codec.Encode", err)
	}

	return buf.Bytes(), nil
}

// Decode parses data produced by Encode back into a Snapshot.
func Decode(data []byte) (Snapshot, error) {
	var snap Snapshot

	if len(data) < 5 || !bytes.Equal(data[:4], magic[:]) {
		return snap, cmerrors.New(cmerrors.DeserializationFailure, "codec.Decode", fmt.Errorf("bad magic"))
	}
	if data[4] != formatVersion {
		return snap, cmerrors.New(cmerrors.DeserializationFailure, "codec.Decode", fmt.Errorf("unsupported format version %d", data[4]))
	}

	r := &reader{data: data, pos: 5}

	fingerprints, err := decodeFingerprints(r)
	if err != nil {
		return snap, cmerrors.New(cmerrors.DeserializationFailure, "codec.Decode", err)
	}
	symbols, err := decodeSymbols(r)
	if err != nil {
		return snap, cmerrors.New(cmerrors.DeserializationFailure, "codec.Decode", err)
	}
	unresolved, err := decodeUnresolved(r)
	if err != nil {
		return snap, cmerrors.New(cmerrors.DeserializationFailure, "codec.Decode", err)
	}

	snap.Fingerprints = fingerprints
	snap.Symbols = symbols
	snap.Unresolved = unresolved
	return snap, nil
}

func encodeFingerprints(buf *bytes.Buffer, m map[string]string) error {
	keys := sortedKeys(m)
	writeUint32(buf, uint32(len(keys)))
	for _, path := range keys {
		writeString(buf, path)
		writeString(buf, m[path])
	}
	return nil
}

func decodeFingerprints(r *reader) (map[string]string, error) {
	n, err := r.readUint32()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, n)
	for i := uint32(0); i < n; i++ {
		path, err := r.readString()
		if err != nil {
			return nil, err
		}
		fp, err := r.readString()
		if err != nil {
			return nil, err
		}
		out[path] = fp
	}
	return out, nil
}

func encodeSymbols(buf *bytes.Buffer, symbols map[string]*symbol.Symbol) error {
	keys := sortedKeys(symbols)
	writeUint32(buf, uint32(len(keys)))
	for _, identity := range keys {
		s := symbols[identity]
		writeString(buf, identity)
		writeString(buf, s.Name)
		writeString(buf, s.NodeKind)
		writeString(buf, s.FilePath)
		writeUint32(buf, uint32(s.LineNumber))
		writeUint32(buf, uint32(s.StartByte))
		writeUint32(buf, uint32(s.EndByte))
		writeStringSet(buf, s.Dependencies)
		writeStringSet(buf, s.UsedBy)
	}
	return nil
}

func decodeSymbols(r *reader) (map[string]*symbol.Symbol, error) {
	n, err := r.readUint32()
	if err != nil {
		return nil, err
	}
	out := make(map[string]*symbol.Symbol, n)
	for i := uint32(0); i < n; i++ {
		identity, err := r.readString()
		if err != nil {
			return nil, err
		}
		name, err := r.readString()
		if err != nil {
			return nil, err
		}
		nodeKind, err := r.readString()
		if err != nil {
			return nil, err
		}
		filePath, err := r.readString()
		if err != nil {
			return nil, err
		}
		line, err := r.readUint32()
		if err != nil {
			return nil, err
		}
		startByte, err := r.readUint32()
		if err != nil {
			return nil, err
		}
		endByte, err := r.readUint32()
		if err != nil {
			return nil, err
		}
		deps, err := r.readStringSet()
		if err != nil {
			return nil, err
		}
		usedBy, err := r.readStringSet()
		if err != nil {
			return nil, err
		}

		s := symbol.New(name, nodeKind, filePath, int(line), int(startByte), int(endByte))
		s.Dependencies = deps
		s.UsedBy = usedBy
		out[identity] = s
	}
	return out, nil
}

func encodeUnresolved(buf *bytes.Buffer, m map[string][]string) error {
	keys := sortedKeys(m)
	writeUint32(buf, uint32(len(keys)))
	for _, caller := range keys {
		rawNames := m[caller]
		writeString(buf, caller)
		writeUint32(buf, uint32(len(rawNames)))
		for _, name := range rawNames {
			writeString(buf, name)
		}
	}
	return nil
}

func decodeUnresolved(r *reader) (map[string][]string, error) {
	n, err := r.readUint32()
	if err != nil {
		return nil, err
	}
	out := make(map[string][]string, n)
	for i := uint32(0); i < n; i++ {
		caller, err := r.readString()
		if err != nil {
			return nil, err
		}
		count, err := r.readUint32()
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, count)
		for j := uint32(0); j < count; j++ {
			name, err := r.readString()
			if err != nil {
				return nil, err
			}
			names = append(names, name)
		}
		out[caller] = names
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeString(buf *bytes.Buffer, s string) {
	writeUint32(buf, uint32(len(s)))
	buf.WriteString(s)
}

func writeStringSet(buf *bytes.Buffer, set map[string]struct{}) {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	writeUint32(buf, uint32(len(keys)))
	for _, k := range keys {
		writeString(buf, k)
	}
}

// reader walks a byte slice, decoding length-prefixed fields in order.
type reader struct {
	data []byte
	pos  int
}

func (r *reader) readUint32() (uint32, error) {
	if r.pos+4 > len(r.data) {
		return 0, fmt.Errorf("unexpected end of snapshot reading uint32 at offset %d", r.pos)
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

func (r *reader) readString() (string, error) {
	n, err := r.readUint32()
	if err != nil {
		return "", err
	}
	if r.pos+int(n) > len(r.data) {
		return "", fmt.Errorf("unexpected end of snapshot reading string at offset %d", r.pos)
	}
	s := string(r.data[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}

func (r *reader) readStringSet() (map[string]struct{}, error) {
	n, err := r.readUint32()
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{}, n)
	for i := uint32(0); i < n; i++ {
		s, err := r.readString()
		if err != nil {
			return nil, err
		}
		out[s] = struct{}{}
	}
	return out, nil
}
