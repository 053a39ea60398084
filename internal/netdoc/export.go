package netdoc

import (
	"fmt"
	"sort"
	"strconv"

	"regulon/internal/formula"
	"regulon/internal/network"
)

// FromNetwork renders net as a document. Symbols are written as their
// evaluated values; every formula also carries its equivalent expression.
func FromNetwork(name string, net *network.Network) (*Document, error) {
	if net == nil {
		return nil, fmt.Errorf("%w: network is nil", ErrInvalidDocument)
	}
	doc := &Document{Name: name}
	for _, s := range net.Species.Names() {
		v, err := net.Species.Value(s)
		if err != nil {
			return nil, err
		}
		doc.Species = append(doc.Species, SpeciesDoc{Name: s, Initial: v})
	}

	names := make([]string, 0, len(net.Symbols))
	for k := range net.Symbols {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		doc.Symbols = append(doc.Symbols, SymbolDoc{Name: k, Value: strconv.FormatFloat(net.Symbols[k], 'g', -1, 64)})
	}

	for _, r := range net.Reactions {
		f, err := formulaDoc(r.Formula)
		if err != nil {
			return nil, fmt.Errorf("reaction %s: %w", r.Name, err)
		}
		doc.Reactions = append(doc.Reactions, ReactionDoc{
			Name:    r.Name,
			Left:    append([]string(nil), r.Left...),
			Right:   append([]string(nil), r.Right...),
			Formula: f,
		})
	}
	return doc, nil
}

func formulaDoc(f formula.Formula) (FormulaDoc, error) {
	out := FormulaDoc{Kind: f.Kind().String(), Expression: f.Expression()}
	switch v := f.(type) {
	case *formula.Transcription:
		out.Rate, out.Hill, out.Kd, out.Target = v.Rate, v.Hill, v.Kd, v.Target
		for _, reg := range v.Regulators {
			doc := RegulatorDoc{From: reg.From, Type: reg.Type.String()}
			if reg.Kd != nil {
				kd := *reg.Kd
				doc.Kd = &kd
			}
			out.Regulators = append(out.Regulators, doc)
		}
	case *formula.Translation:
		out.Rate, out.Species = v.Rate, v.MRNA
	case *formula.Degradation:
		out.Rate, out.Species = v.Rate, v.Decaying
	case *formula.Custom:
		out.Law = v.Law()
		if len(v.Local) > 0 {
			out.Params = make(map[string]float64, len(v.Local))
			for k, p := range v.Local {
				out.Params[k] = p
			}
		}
		if v.TimeMultiplier != 1 {
			out.TimeMultiplier = v.TimeMultiplier
		}
	default:
		return FormulaDoc{}, fmt.Errorf("unsupported formula %T", f)
	}
	return out, nil
}
