package planner

import (
	"strings"

	"github.com/deltalog/deltalog/ast"
	"github.com/deltalog/deltalog/ir"
)

// resolveIODirective fills in the documented defaults of one directive:
// file IO, a filename derived from the relation, tab-separated headerless
// intermediates, and fact/output-dir joining for relative paths.
func (p *Planner) resolveIODirective(d ir.IODirectives, rel *ast.Relation, filePath, fileExt string, isIntermediate bool) {
	d["name"] = rel.Name

	if _, ok := d["IO"]; !ok {
		d["IO"] = "file"
	}
	if d["IO"] != "file" {
		return
	}

	if isIntermediate {
		d["intermediate"] = "true"
		d["delimiter"] = "\t"
		d["headers"] = "false"
	}

	if _, ok := d["filename"]; !ok || isIntermediate {
		d["filename"] = rel.Name + fileExt
	}
	if !strings.HasPrefix(d["filename"], "/") {
		d["filename"] = filePath + "/" + d["filename"]
	}
}

// inputDirectives resolves the load directives of a relation.
func (p *Planner) inputDirectives(rel *ast.Relation, filePath, fileExt string) []ir.IODirectives {
	var directives []ir.IODirectives
	for _, load := range rel.Loads {
		d := ir.IODirectives{}
		for k, v := range load.Map {
			d[k] = v
		}
		directives = append(directives, d)
	}
	if len(directives) == 0 {
		directives = append(directives, ir.IODirectives{})
	}

	inputPath := filePath
	if inputPath == "" {
		inputPath = p.conf.FactDir
	}
	inputExt := fileExt
	if inputExt == "" {
		inputExt = ".facts"
	}

	isIntermediate := p.conf.HasEngine() && inputPath == p.conf.OutputDir && inputExt == ".facts"

	for _, d := range directives {
		p.resolveIODirective(d, rel, inputPath, inputExt, isIntermediate)
	}
	return directives
}

// outputDirectives resolves the store directives of a relation. When the
// output directory is "-" every printsize store becomes a stdoutprintsize
// sink and the first output store becomes a stdout sink with headers;
// further output stores add no directive.
func (p *Planner) outputDirectives(rel *ast.Relation, filePath, fileExt string) []ir.IODirectives {
	var directives []ir.IODirectives

	if p.conf.OutputDir == "-" {
		hasOutput := false
		for _, store := range rel.Stores {
			switch {
			case store.Kind == ast.DirectivePrintSize:
				directives = append(directives, ir.IODirectives{"IO": "stdoutprintsize"})
			case !hasOutput:
				hasOutput = true
				directives = append(directives, ir.IODirectives{"IO": "stdout", "headers": "true"})
			}
		}
	} else {
		for _, store := range rel.Stores {
			d := ir.IODirectives{}
			for k, v := range store.Map {
				d[k] = v
			}
			directives = append(directives, d)
		}
	}
	if len(directives) == 0 {
		directives = append(directives, ir.IODirectives{})
	}

	outputPath := filePath
	if outputPath == "" {
		outputPath = p.conf.OutputDir
	}
	outputExt := fileExt
	if outputExt == "" {
		outputExt = ".csv"
	}

	isIntermediate := p.conf.HasEngine() && outputPath == p.conf.OutputDir && outputExt == ".facts"

	for _, d := range directives {
		p.resolveIODirective(d, rel, outputPath, outputExt, isIntermediate)

		if _, ok := d["attributeNames"]; ok {
			continue
		}
		delimiter := "\t"
		if custom, ok := d["delimiter"]; ok {
			delimiter = custom
		}
		names := make([]string, 0, rel.Arity())
		for _, attr := range rel.Attributes {
			names = append(names, attr.Name)
		}
		if p.conf.HasProvenance() {
			names = names[:len(names)-1-rel.HeightParams]
		}
		d["attributeNames"] = strings.Join(names, delimiter)
	}
	return directives
}
