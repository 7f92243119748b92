package durable

import (
	"errors"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/unkn0wn-root/gistcache/codec"
)

// NameProto selects ProtoCodec in EntryCodec.
const NameProto = "proto"

var protoStruct = codec.NewProtobuf(func() *structpb.Struct { return &structpb.Struct{} })

// ProtoCodec stores Entry as a protobuf Struct, readable by any protobuf
// toolchain without a generated schema.
type ProtoCodec struct{}

func (ProtoCodec) Encode(e Entry) ([]byte, error) {
	s, err := structpb.NewStruct(map[string]any{
		"content":    e.Content,
		"stylesheet": e.Stylesheet,
		"fetched_at": e.FetchedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return nil, err
	}
	return protoStruct.Encode(s)
}

func (ProtoCodec) Decode(b []byte) (Entry, error) {
	s, err := protoStruct.Decode(b)
	if err != nil {
		return Entry{}, err
	}
	content, ok := s.GetFields()["content"]
	if !ok {
		return Entry{}, errors.New("durable: proto entry without content")
	}
	e := Entry{
		Content:    content.GetStringValue(),
		Stylesheet: s.GetFields()["stylesheet"].GetStringValue(),
	}
	if ts := s.GetFields()["fetched_at"].GetStringValue(); ts != "" {
		if e.FetchedAt, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return Entry{}, err
		}
	}
	return e, nil
}
