// Package mem provides memory allocation utilities.
//
// # Aligned Allocation
//
// Pixel and scratch buffers handed to decode/transform stages are allocated
// with 64-byte alignment so SIMD-accelerated codecs can consume them directly.
package mem
