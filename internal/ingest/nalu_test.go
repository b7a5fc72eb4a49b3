package ingest

import (
	"bytes"
	"testing"

	"github.com/zsiec/reframer/internal/media"
)

func TestAccessInfo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		codec   media.Codec
		au      [][]byte
		wantSAP media.SAPType
		wantDep uint8
	}{
		{"h264 idr", media.CodecH264, [][]byte{{0x67, 1}, {0x68, 1}, {0x65, 1}}, media.SAP1, media.DependedOn},
		{"h264 reference slice", media.CodecH264, [][]byte{{0x41, 1}}, media.SAPNone, media.DependedOn},
		{"h264 non-reference slice", media.CodecH264, [][]byte{{0x01, 1}}, media.SAPNone, media.DependedOnByNone},
		{"h264 sei only", media.CodecH264, [][]byte{{0x06, 1}}, media.SAPNone, media.DependedUnknown},
		{"h265 idr", media.CodecH265, [][]byte{{0x26, 1}}, media.SAP1, media.DependedOn},
		{"h265 cra", media.CodecH265, [][]byte{{0x2A, 1}}, media.SAP3, media.DependedOn},
		{"h265 trail_n", media.CodecH265, [][]byte{{0x00, 1}}, media.SAPNone, media.DependedOnByNone},
		{"h265 trail_r", media.CodecH265, [][]byte{{0x02, 1}}, media.SAPNone, media.DependedOn},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sap, dep := accessInfo(tt.codec, tt.au)
			if sap != tt.wantSAP {
				t.Errorf("sap: got %d, want %d", sap, tt.wantSAP)
			}
			if got := (dep >> 2) & 3; got != tt.wantDep {
				t.Errorf("depended on: got %d, want %d", got, tt.wantDep)
			}
		})
	}
}

func TestAnnexB(t *testing.T) {
	t.Parallel()

	got := annexB([][]byte{{0x67, 0xAA}, {0x65}})
	want := []byte{0, 0, 0, 1, 0x67, 0xAA, 0, 0, 0, 1, 0x65}
	if !bytes.Equal(got, want) {
		t.Errorf("got %x, want %x", got, want)
	}
}

func TestIsSEI(t *testing.T) {
	t.Parallel()

	if !isSEI(media.CodecH264, []byte{0x06, 0x04}) {
		t.Error("h264 SEI not detected")
	}
	if isSEI(media.CodecH264, []byte{0x65}) {
		t.Error("IDR slice reported as SEI")
	}
	if isSEI(media.CodecH264, nil) {
		t.Error("empty NAL unit reported as SEI")
	}
}
