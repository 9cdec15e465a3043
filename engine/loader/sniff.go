package loader

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"strings"

	"github.com/h2non/filetype"
)

// format identifies a decoder backend.
type format int

const (
	formatUnknown format = iota
	formatGLTF
	formatGLB
	formatOBJ
	formatSceneFile
)

// String implements fmt.Stringer.
func (f format) String() string {
	switch f {
	case formatGLTF:
		return "gltf"
	case formatGLB:
		return "glb"
	case formatOBJ:
		return "obj"
	case formatSceneFile:
		return "scene file"
	default:
		return "unknown"
	}
}

// sniffWindow bounds how much of a file the text matchers inspect.
const sniffWindow = 4096

// Custom filetype registrations for the model formats this package decodes.
var (
	typeGLB       = filetype.NewType("glb", "model/gltf-binary")
	typeGLTF      = filetype.NewType("gltf", "model/gltf+json")
	typeOBJ       = filetype.NewType("obj", "model/obj")
	typeSceneFile = filetype.NewType("oxyscene", "application/x-oxyscene+yaml")
)

func init() {
	filetype.AddMatcher(typeGLB, matchGLB)
	filetype.AddMatcher(typeGLTF, matchGLTF)
	filetype.AddMatcher(typeSceneFile, matchSceneFile)
	filetype.AddMatcher(typeOBJ, matchOBJ)
}

func matchGLB(buf []byte) bool {
	return len(buf) >= 12 && binary.LittleEndian.Uint32(buf[:4]) == gltfGLBMagic
}

func matchGLTF(buf []byte) bool {
	head := bytes.TrimSpace(window(buf))
	return len(head) > 0 && head[0] == '{' && bytes.Contains(head, []byte(`"asset"`))
}

func matchSceneFile(buf []byte) bool {
	sc := bufio.NewScanner(bytes.NewReader(window(buf)))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || line == "---" {
			continue
		}
		return strings.HasPrefix(line, sceneFileMarker+":")
	}
	return false
}

// matchOBJ accepts text whose first meaningful lines are OBJ statements.
func matchOBJ(buf []byte) bool {
	head := window(buf)
	if bytes.IndexByte(head, 0) >= 0 {
		return false
	}
	sc := bufio.NewScanner(bytes.NewReader(head))
	seen := 0
	for sc.Scan() && seen < 8 {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		switch fields[0] {
		case "v", "vn", "vt", "f", "o", "g", "s", "mtllib", "usemtl":
			seen++
		default:
			return false
		}
	}
	return seen > 0
}

func window(buf []byte) []byte {
	if len(buf) > sniffWindow {
		return buf[:sniffWindow]
	}
	return buf
}

// sniff classifies data by content.
func sniff(data []byte) format {
	kind, err := filetype.Match(data)
	if err != nil {
		return formatUnknown
	}
	switch kind {
	case typeGLB:
		return formatGLB
	case typeGLTF:
		return formatGLTF
	case typeSceneFile:
		return formatSceneFile
	case typeOBJ:
		return formatOBJ
	}
	return formatUnknown
}

// formatForExt maps a lower-case extension to a format.
func formatForExt(ext string) format {
	switch ext {
	case ".gltf":
		return formatGLTF
	case ".glb":
		return formatGLB
	case ".obj":
		return formatOBJ
	default:
		return formatUnknown
	}
}
