package step

import "github.com/vk/fitgrid/internal/graphviz"

// Structure builds the upstream graph description for this step. External
// input-data keys appear as nodes too, so a drawing shows where data enters
// the graph.
func (s *Step) Structure() graphviz.Structure {
	st := graphviz.NewStructure()
	s.buildStructure(st)
	return st
}

func (s *Step) buildStructure(st graphviz.Structure) {
	st.AddNode(s.name)
	for _, pred := range s.inputSteps {
		pred.buildStructure(st)
		st.AddEdge(pred.name, s.name)
	}
	for _, key := range s.inputData {
		st.AddNode(key)
		st.AddEdge(key, s.name)
	}
}
