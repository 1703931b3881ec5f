// Package quilt synthesizes large textures from a small sample by image
// quilting: overlapping tiles are cut from the source, chosen by how well
// they match the pixels already placed, and joined along minimum error
// boundary cuts.
package quilt
