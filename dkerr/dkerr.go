// Package dkerr defines the persistent, stable error codes referenced by
// spec.md §6.4 and the tagged-enumeration error representation of §7.
package dkerr

import "fmt"

// Code is a stable, persistent error code. Values are never renumbered once
// shipped, since archives and logs may reference them.
type Code int

const (
	Unknown Code = iota
	MagicMismatch
	VersionMismatch
	VerifyHashFailure
	ChunkCountTooLarge
	InlineAssetByteCountMismatch
	RecipeParameterCountInvalid
	CopySourceOffsetTooLarge
	RemainderChunkLengthTooLarge
	SlicingRequestOverlap
	SlicingProducedHashMismatch
	SlicingInvalidState
	KitchenItemNotReadyToFetch
	ZlibReaderInitFailed
	ZstdDecompressStreamFailed
	ZstdDictionaryTooLarge
	ValueExceedsSizeT
	RecipeSelfReferential
	ArchiveItemMissingRecipe
)

var names = map[Code]string{
	Unknown:                      "unknown",
	MagicMismatch:                "diff_magic_mismatch",
	VersionMismatch:              "diff_version_mismatch",
	VerifyHashFailure:            "diff_verify_hash_failure",
	ChunkCountTooLarge:           "diff_chunk_count_too_large",
	InlineAssetByteCountMismatch: "diff_inline_asset_byte_count_mismatch",
	RecipeParameterCountInvalid:  "diff_recipe_invalid_parameter_count",
	CopySourceOffsetTooLarge:     "diff_copy_source_offset_too_large",
	RemainderChunkLengthTooLarge: "diff_remainder_chunk_length_too_large",
	SlicingRequestOverlap:        "diff_slicing_request_slice_overlap",
	SlicingProducedHashMismatch:  "diff_slicing_produced_hash_mismatch",
	SlicingInvalidState:          "diff_slicing_invalid_state",
	KitchenItemNotReadyToFetch:   "diffs_kitchen_item_not_ready_to_fetch",
	ZlibReaderInitFailed:         "zlib_reader_init_failed",
	ZstdDecompressStreamFailed:   "zstd_decompress_stream_failed",
	ZstdDictionaryTooLarge:       "zstd_dictionary_too_large",
	ValueExceedsSizeT:            "value_exceeds_size_t",
	RecipeSelfReferential:        "recipe_self_referential",
	ArchiveItemMissingRecipe:     "diff_archive_item_missing_recipe",
}

func (c Code) String() string {
	if n, ok := names[c]; ok {
		return n
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// Error is a diagnosable failure: a stable code plus a free-form message.
type Error struct {
	Code    Code
	Message string
}

func New(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is lets errors.Is(err, dkerr.VerifyHashFailure-shaped sentinel) work by
// comparing codes when the target is also an *Error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}
