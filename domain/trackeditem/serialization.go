package trackeditem

import (
	"bytes"
	"io"

	"github.com/kaspanet/reorgkeeper/domain/model/externalapi"
	"github.com/kaspanet/reorgkeeper/util/binaryserializer"
	"github.com/pkg/errors"
)

const serializationVersion = 1

// SerializeTrackedItem returns the on-disk encoding of item
func SerializeTrackedItem(item *TrackedItem) ([]byte, error) {
	w := &bytes.Buffer{}
	err := serializeTrackedItem(w, item)
	if err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func serializeTrackedItem(w io.Writer, item *TrackedItem) error {
	err := binaryserializer.PutUint8(w, serializationVersion)
	if err != nil {
		return err
	}
	err = binaryserializer.PutVarBytes(w, item.ID)
	if err != nil {
		return err
	}
	err = binaryserializer.PutUint8(w, uint8(item.Kind))
	if err != nil {
		return err
	}
	err = serializeStatus(w, &item.Status)
	if err != nil {
		return err
	}
	err = binaryserializer.PutOptionalUint64(w, item.CoinbaseHeight)
	if err != nil {
		return err
	}
	return binaryserializer.PutOptionalUint64(w, item.MMRPosition)
}

func serializeStatus(w io.Writer, status *Status) error {
	err := binaryserializer.PutUint8(w, uint8(status.State))
	if err != nil {
		return err
	}
	err = binaryserializer.PutUint64(w, status.MinedHeight)
	if err != nil {
		return err
	}
	err = serializeOptionalHash(w, status.MinedInBlock)
	if err != nil {
		return err
	}
	err = binaryserializer.PutUint64(w, status.Confirmations)
	if err != nil {
		return err
	}
	err = binaryserializer.PutUint64(w, status.SpentHeight)
	if err != nil {
		return err
	}
	err = serializeOptionalHash(w, status.SpentInBlock)
	if err != nil {
		return err
	}
	return binaryserializer.PutBool(w, status.SpentConfirmed)
}

func serializeOptionalHash(w io.Writer, hash *externalapi.DomainHash) error {
	if hash == nil {
		return binaryserializer.PutVarBytes(w, nil)
	}
	return binaryserializer.PutVarBytes(w, hash.ByteSlice())
}

// DeserializeTrackedItem decodes an item encoded by SerializeTrackedItem
func DeserializeTrackedItem(data []byte) (*TrackedItem, error) {
	r := bytes.NewReader(data)
	item, err := deserializeTrackedItem(r)
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, errors.Errorf("%d trailing bytes after tracked item", r.Len())
	}
	return item, nil
}

func deserializeTrackedItem(r io.Reader) (*TrackedItem, error) {
	version, err := binaryserializer.Uint8(r)
	if err != nil {
		return nil, err
	}
	if version != serializationVersion {
		return nil, errors.Errorf("unknown tracked item serialization version %d", version)
	}

	item := &TrackedItem{}
	item.ID, err = binaryserializer.VarBytes(r)
	if err != nil {
		return nil, err
	}
	kind, err := binaryserializer.Uint8(r)
	if err != nil {
		return nil, err
	}
	item.Kind = Kind(kind)
	if item.Kind != KindOutput && item.Kind != KindTransaction {
		return nil, errors.Errorf("invalid tracked item kind %d", kind)
	}
	item.Status, err = deserializeStatus(r)
	if err != nil {
		return nil, err
	}
	item.CoinbaseHeight, err = binaryserializer.OptionalUint64(r)
	if err != nil {
		return nil, err
	}
	item.MMRPosition, err = binaryserializer.OptionalUint64(r)
	if err != nil {
		return nil, err
	}
	return item, nil
}

func deserializeStatus(r io.Reader) (Status, error) {
	status := Status{}
	state, err := binaryserializer.Uint8(r)
	if err != nil {
		return Status{}, err
	}
	status.State = State(state)
	if status.State > StateAbandoned {
		return Status{}, errors.Errorf("invalid tracked item state %d", state)
	}
	status.MinedHeight, err = binaryserializer.Uint64(r)
	if err != nil {
		return Status{}, err
	}
	status.MinedInBlock, err = deserializeOptionalHash(r)
	if err != nil {
		return Status{}, err
	}
	status.Confirmations, err = binaryserializer.Uint64(r)
	if err != nil {
		return Status{}, err
	}
	status.SpentHeight, err = binaryserializer.Uint64(r)
	if err != nil {
		return Status{}, err
	}
	status.SpentInBlock, err = deserializeOptionalHash(r)
	if err != nil {
		return Status{}, err
	}
	status.SpentConfirmed, err = binaryserializer.Bool(r)
	if err != nil {
		return Status{}, err
	}
	return status, nil
}

func deserializeOptionalHash(r io.Reader) (*externalapi.DomainHash, error) {
	hashBytes, err := binaryserializer.VarBytes(r)
	if err != nil {
		return nil, err
	}
	if len(hashBytes) == 0 {
		return nil, nil
	}
	return externalapi.NewDomainHashFromByteSlice(hashBytes)
}
