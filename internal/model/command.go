// internal/model/command.go
package model

import (
	"encoding/base64"

	"escpos-service/pkg/barcode"
	"escpos-service/pkg/escpos"
)

// CommandView is the API representation of one decoded command
type CommandView struct {
	Index   int                 `json:"index"`
	Type    string              `json:"type"`
	Label   string              `json:"label"`
	Control bool                `json:"control"`
	State   escpos.PrinterState `json:"state"`
	Details JSONObject          `json:"details,omitempty"`
}

// NewCommandView converts a decoded command into its API form.
func NewCommandView(index int, pc escpos.ParsedCommand) CommandView {
	return CommandView{
		Index:   index,
		Type:    pc.Command.Name(),
		Label:   pc.Command.Label(),
		Control: escpos.IsControl(pc.Command),
		State:   pc.State,
		Details: commandDetails(pc.Command),
	}
}

// NewCommandViews converts a decoded command list, preserving order.
func NewCommandViews(cmds []escpos.ParsedCommand) []CommandView {
	views := make([]CommandView, len(cmds))
	for i, pc := range cmds {
		views[i] = NewCommandView(i, pc)
	}
	return views
}

func commandDetails(cmd escpos.Command) JSONObject {
	switch c := cmd.(type) {
	case escpos.Text:
		return JSONObject{"text": c.Value}
	case escpos.UnrecognizedByte:
		return JSONObject{"byte": c.Byte}
	case escpos.BoldSet:
		return JSONObject{"bold": c.On}
	case escpos.AlignSet:
		return JSONObject{"alignment": c.Alignment.String()}
	case escpos.SizeSet:
		return JSONObject{"raw": c.Raw, "width": c.Width, "height": c.Height}
	case escpos.RasterImage:
		return JSONObject{
			"mode":        c.Mode,
			"width_bytes": c.WidthBytes,
			"width_dots":  c.WidthBytes * 8,
			"height":      c.Height,
			"data":        base64.StdEncoding.EncodeToString(c.Data),
		}
	case escpos.QR:
		return JSONObject{
			"model":       c.Model,
			"module_size": c.ModuleSize,
			"ecc":         c.ECC,
			"data":        string(c.Data),
		}
	case escpos.Barcode:
		return JSONObject{
			"mode":      c.Mode,
			"symbology": barcode.SymbologyForMode(c.Mode).String(),
			"data":      string(c.Data),
		}
	case escpos.BarcodeHRIPosition:
		return JSONObject{"position": c.Position.String()}
	case escpos.BarcodeHeight:
		return JSONObject{"dots": c.Dots}
	case escpos.BarcodeModuleWidth:
		return JSONObject{"width": c.Width}
	case escpos.BarcodeHRIFont:
		return JSONObject{"font": c.Font}
	case escpos.UnknownEscOpcode:
		return JSONObject{"opcode": c.Opcode}
	case escpos.UnknownGsOpcode:
		return JSONObject{"opcode": c.Opcode}
	default:
		return nil
	}
}

// BarcodeView is a barcode command encoded into module runs
type BarcodeView struct {
	Index            int                 `json:"index"`
	Mode             byte                `json:"mode"`
	Payload          string              `json:"payload"`
	Symbology        string              `json:"symbology"`
	Encoded          bool                `json:"encoded"`
	Runs             []int               `json:"runs,omitempty"`
	StartsDark       bool                `json:"starts_dark"`
	Modules          int                 `json:"modules"`
	QuietZoneModules int                 `json:"quiet_zone_modules"`
	Text             string              `json:"text"`
	State            escpos.PrinterState `json:"state"`
}
