package ingest

import (
	"github.com/zsiec/ccx"
)

// captionDecoder extracts the text of one CEA-608 channel from the SEI
// NAL units of a video stream.
type captionDecoder struct {
	channel int
	dec     *ccx.CEA608Decoder

	frames        int64
	lastCtrl      [2][2]byte
	lastWasCtrl   [2]bool
	lastCtrlFrame [2]int64
}

func newCaptionDecoder(channel int) *captionDecoder {
	return &captionDecoder{channel: channel, dec: ccx.NewCEA608Decoder()}
}

// frame advances the picture counter used to spot doubled control codes.
func (c *captionDecoder) frame() {
	c.frames++
}

// decode feeds one SEI NAL unit and returns the caption text it made
// visible, or "".
func (c *captionDecoder) decode(sei []byte) string {
	cd := ccx.ExtractCaptions(sei)
	if cd == nil {
		return ""
	}

	var text string
	for _, pair := range cd.CC608Pairs {
		cc1, cc2 := pair.Data[0], pair.Data[1]

		// Control codes are sent twice in consecutive frames; act once.
		f := pair.Field
		if cc1 >= 0x10 && cc1 <= 0x1F {
			cp := [2]byte{cc1, cc2}
			if c.lastWasCtrl[f] && c.lastCtrl[f] == cp && c.frames-c.lastCtrlFrame[f] <= 2 {
				c.lastWasCtrl[f] = false
				continue
			}
			c.lastCtrl[f] = cp
			c.lastWasCtrl[f] = true
			c.lastCtrlFrame[f] = c.frames
		} else {
			c.lastWasCtrl[f] = false
		}

		if pair.Channel != c.channel {
			continue
		}
		if t := c.dec.Decode(cc1, cc2); t != "" {
			text = t
		}
	}
	return text
}
