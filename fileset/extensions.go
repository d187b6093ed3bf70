package fileset

import "strings"

// compressibleExtensions are extensions worth compressing on the wire (spec §4.3):
// text, code, logs, config, and uncompressed image formats.
var compressibleExtensions = map[string]bool{
	".txt": true, ".log": true, ".csv": true, ".tsv": true, ".json": true,
	".xml": true, ".yaml": true, ".yml": true, ".toml": true, ".ini": true,
	".conf": true, ".cfg": true, ".md": true, ".rst": true,
	".go": true, ".py": true, ".js": true, ".ts": true, ".java": true,
	".c": true, ".h": true, ".cpp": true, ".hpp": true, ".cs": true,
	".rb": true, ".php": true, ".sh": true, ".sql": true, ".html": true,
	".css": true, ".bmp": true, ".tiff": true, ".tif": true, ".svg": true,
}

// alreadyCompressedExtensions are extensions unlikely to compress further
// (spec §4.3): archives, common image/video/audio containers, PDF, and
// modern office formats (themselves zip containers).
var alreadyCompressedExtensions = map[string]bool{
	".zip": true, ".7z": true, ".tar": true, ".gz": true, ".tgz": true,
	".bz2": true, ".xz": true, ".rar": true, ".br": true, ".zst": true,
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
	".mp4": true, ".mkv": true, ".mov": true, ".avi": true, ".webm": true,
	".mp3": true, ".aac": true, ".flac": true, ".ogg": true,
	".pdf": true,
	".docx": true, ".xlsx": true, ".pptx": true,
}

func extensionOf(name string) string {
	return strings.ToLower(nameExt(name))
}

func nameExt(name string) string {
	for i := len(name) - 1; i >= 0 && name[i] != '/'; i-- {
		if name[i] == '.' {
			return name[i:]
		}
	}

	return ""
}

// IsCompressible reports whether an extension belongs to the compressible
// set and not the already-compressed set (spec §4.3/§4.4 shouldCompress gate).
func IsCompressible(path string) bool {
	ext := extensionOf(path)
	return compressibleExtensions[ext] && !alreadyCompressedExtensions[ext]
}
