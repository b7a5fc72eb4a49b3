package ingest

import (
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	"github.com/bluenviron/mediacommon/v2/pkg/codecs/h265"

	"github.com/zsiec/reframer/internal/media"
)

// annexB joins the NAL units of an access unit with 4-byte start codes.
func annexB(au [][]byte) []byte {
	n := 0
	for _, nalu := range au {
		n += 4 + len(nalu)
	}
	buf := make([]byte, 0, n)
	for _, nalu := range au {
		buf = append(buf, 0, 0, 0, 1)
		buf = append(buf, nalu...)
	}
	return buf
}

// accessInfo returns the SAP type of an access unit and its dependency
// flags: a picture carried only in non-reference slices is marked as
// depended on by none.
func accessInfo(codec media.Codec, au [][]byte) (media.SAPType, uint8) {
	sap := media.SAPNone
	var vcl, ref bool
	for _, nalu := range au {
		if len(nalu) == 0 {
			continue
		}
		switch codec {
		case media.CodecH264:
			switch h264.NALUType(nalu[0] & 0x1F) {
			case h264.NALUTypeIDR:
				sap = media.SAP1
				vcl = true
				ref = true
			case h264.NALUTypeNonIDR:
				vcl = true
				if nalu[0]&0x60 != 0 {
					ref = true
				}
			}
		case media.CodecH265:
			typ := h265.NALUType((nalu[0] >> 1) & 0x3F)
			switch typ {
			case h265.NALUType_IDR_W_RADL, h265.NALUType_IDR_N_LP:
				sap = media.SAP1
			case h265.NALUType_CRA_NUT:
				if sap == media.SAPNone {
					sap = media.SAP3
				}
			}
			if typ < 32 {
				vcl = true
				// Sub-layer non-reference types are the even ones below 16.
				if typ >= 16 || typ%2 == 1 {
					ref = true
				}
			}
		}
	}

	switch {
	case !vcl:
		return sap, 0
	case ref:
		return sap, media.DependedOn << 2
	default:
		return sap, media.DependedOnByNone << 2
	}
}

func isSEI(codec media.Codec, nalu []byte) bool {
	return codec == media.CodecH264 && len(nalu) > 0 &&
		h264.NALUType(nalu[0]&0x1F) == h264.NALUTypeSEI
}
