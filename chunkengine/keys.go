package chunkengine

import "fmt"

// TensorMetaKey returns the backing-store path for a tensor's meta blob.
func TensorMetaKey(tensorKey string) string {
	return fmt.Sprintf("%s/tensor_meta.json", tensorKey)
}

// ChunkIDEncoderKey returns the backing-store path for a tensor's chunk-id
// encoder.
func ChunkIDEncoderKey(tensorKey string) string {
	return fmt.Sprintf("%s/chunk_id_encoder", tensorKey)
}

// ChunkKey returns the backing-store path for one of a tensor's chunks,
// named by its hex chunk name (chunkid.NameFromID).
func ChunkKey(tensorKey, name string) string {
	return fmt.Sprintf("%s/chunks/%s", tensorKey, name)
}
