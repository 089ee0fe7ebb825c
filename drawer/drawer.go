// Package drawer renders a pipeline's chain of steps as a Graphviz DOT graph,
// optionally annotated with measured step latencies.
package drawer

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"
	"github.com/pkg/errors"
	"gopkg.in/go-playground/colors.v1"

	"github.com/Tailen/brickblock/measure"
	"github.com/Tailen/brickblock/pipeline"
	"github.com/Tailen/brickblock/schema"
)

// Drawer holds the graph of one pipeline: an input node, one node per step
// and an output node, linked in order and labelled with the schemas flowing
// between them.
type Drawer struct {
	graph  graph.Graph[string, string]
	labels map[string][]string // step label -> vertices
}

// New builds the graph of p.
func New(p *pipeline.Pipeline) (*Drawer, error) {
	d := &Drawer{
		graph:  graph.New(graph.StringHash, graph.Directed()),
		labels: make(map[string][]string),
	}
	in := "input"
	if err := d.addVertex(in, graph.VertexAttribute("shape", "oval")); err != nil {
		return nil, err
	}
	prev := in
	for i, s := range p.Steps() {
		v := fmt.Sprintf("%d. %s", i+1, s.Label())
		if err := d.addVertex(v, graph.VertexAttribute("shape", "box")); err != nil {
			return nil, err
		}
		d.labels[s.Label()] = append(d.labels[s.Label()], v)
		if err := d.addLink(prev, v, schemaName(s.InputSchema())); err != nil {
			return nil, err
		}
		prev = v
	}
	out := "output"
	if err := d.addVertex(out, graph.VertexAttribute("shape", "oval")); err != nil {
		return nil, err
	}
	if err := d.addLink(prev, out, schemaName(p.OutputSchema())); err != nil {
		return nil, err
	}
	return d, nil
}

func schemaName(s schema.Schema) string {
	if s == nil {
		return ""
	}
	return s.Name()
}

func (d *Drawer) addVertex(name string, opts ...func(*graph.VertexProperties)) error {
	if err := d.graph.AddVertex(name, opts...); err != nil {
		return errors.Wrapf(err, "unable to add vertex %s", name)
	}
	return nil
}

func (d *Drawer) addLink(parent, child, label string) error {
	if err := d.graph.AddEdge(parent, child, graph.EdgeAttribute("label", label)); err != nil {
		return errors.Wrapf(err, "unable to add edge from %s to %s", parent, child)
	}
	return nil
}

const maxRGB = 240

// AddMeasure annotates step nodes with their average duration and colours
// them from blue (fastest) to red (slowest).
func (d *Drawer) AddMeasure(msr measure.Measure) error {
	avgs := make(map[string]time.Duration)
	for label, mt := range msr.AllMetrics() {
		if avg := mt.AVGDuration(); avg > 0 {
			avgs[label] = avg
		}
	}
	if len(avgs) == 0 {
		return nil
	}
	sorted := make([]time.Duration, 0, len(avgs))
	for _, avg := range avgs {
		sorted = append(sorted, avg)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	minValue, maxValue := sorted[0], sorted[len(sorted)-1]

	for label, avg := range avgs {
		fraction := 1.0
		if maxValue > minValue {
			fraction = float64(avg-minValue) / float64(maxValue-minValue)
		}
		red := maxRGB * fraction
		colour, err := colors.RGB(uint8(red), 0, uint8(maxRGB-red))
		if err != nil {
			return errors.Wrap(err, "unable to get colour")
		}
		for _, v := range d.labels[label] {
			_, properties, err := d.graph.VertexWithProperties(v)
			if err != nil {
				return errors.Wrap(err, "unable to get vertex properties")
			}
			properties.Attributes["xlabel"] = avg.String()
			properties.Attributes["color"] = colour.ToHEX().String()
		}
	}
	return nil
}

// Draw writes the graph to w in DOT language.
func (d *Drawer) Draw(w io.Writer) error {
	if err := draw.DOT(d.graph, w); err != nil {
		return errors.Wrap(err, "unable to draw pipeline")
	}
	return nil
}

// DrawFile writes the graph to the named file.
func (d *Drawer) DrawFile(name string) (err error) {
	file, err := os.Create(name)
	if err != nil {
		return errors.Wrapf(err, "unable to create file %s", name)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "unable to close file %s", name)
		}
	}()
	return d.Draw(file)
}
