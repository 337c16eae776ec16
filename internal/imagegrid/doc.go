// Package imagegrid validates image tensors, tiles batches into a single grid
// image and packs float pixels into 8-bit interleaved buffers for encoding.
//
// Tensors are dense float64 arrays with an explicit shape. A single image is
// rank 3 and a batch is rank 4 with the batch axis first. The Layout says
// where the channel axis sits:
//
//	ChannelsLast   image (H, W, C)   batch (N, H, W, C)
//	ChannelsFirst  image (C, H, W)   batch (N, C, H, W)
//
// Channel counts of 1, 3 and 4 are accepted. Pixel values are expected in
// [0, 1]; Pack scales by 255, clips and truncates.
package imagegrid
