package bio

import (
	"encoding/binary"
	"io"
	"io/ioutil"
	"os"

	"github.com/pbanos/arboretum/pkg/bv"
	"github.com/pbanos/arboretum/pkg/forest"
	"github.com/pkg/errors"
	"gopkg.in/mgo.v2/bson"
)

const bundleVersion = 1

type nodeDoc struct {
	Pred   uint32  `bson:"p"`
	LhDel  uint32  `bson:"d"`
	Num    float64 `bson:"n"`
	Offset uint32  `bson:"o"`
}

type leafDoc struct {
	Score  float64 `bson:"s"`
	Extent uint32  `bson:"e"`
	SCount uint32  `bson:"c"`
}

type metaDoc struct {
	Names          []string   `bson:"names"`
	NPredNum       int        `bson:"nPredNum"`
	Cardinality    []uint32   `bson:"cardinality"`
	Levels         [][]string `bson:"levels"`
	Response       string     `bson:"response"`
	ResponseLevels []string   `bson:"responseLevels"`
	YTrain         []float64  `bson:"yTrain"`
}

/*
bundleDoc is the BSON layout of a bundle. Bit slots and bag samples are
packed little-endian into binary fields, since BSON has no unsigned 64-bit
integers and a document per sample would dwarf the data.
*/
type bundleDoc struct {
	Version    int       `bson:"version"`
	NPredNum   int       `bson:"nPredNum"`
	Nodes      []nodeDoc `bson:"nodes"`
	Height     []int     `bson:"height"`
	FacSlots   []byte    `bson:"facSlots"`
	FacHeight  []int     `bson:"facHeight"`
	NCtg       int       `bson:"nCtg"`
	Default    float64   `bson:"default"`
	Thin       bool      `bson:"thin"`
	Leaves     []leafDoc `bson:"leaves"`
	LeafHeight []int     `bson:"leafHeight"`
	Weight     []float64 `bson:"weight"`
	Samples    []byte    `bson:"samples"`
	SampleEnd  []int     `bson:"sampleEnd"`
	BagRows    int       `bson:"bagRows"`
	Bag        [][]byte  `bson:"bag"`
	Meta       metaDoc   `bson:"meta"`
}

/*
MarshalBundle encodes a bundle as BSON and compresses it with c. The
encoding keeps every field needed to reproduce the bundle's predictions
bit for bit.
*/
func MarshalBundle(b *forest.Bundle, c Compression) ([]byte, error) {
	doc := &bundleDoc{Version: bundleVersion, Meta: metaDoc(b.Meta)}
	if f := b.Forest; f != nil {
		doc.NPredNum = f.NPredNum()
		doc.Height = f.Heights()
		for _, n := range f.Nodes() {
			doc.Nodes = append(doc.Nodes, nodeDoc(n))
		}
		doc.FacSlots = packSlots(f.FactorBits().Slots())
		doc.FacHeight = f.FactorBits().Heights()
	}
	if lf := b.Leaf; lf != nil {
		doc.NCtg = lf.NCtg
		doc.Default = lf.Default
		doc.Thin = lf.Thin()
		for _, l := range lf.Leaves() {
			doc.Leaves = append(doc.Leaves, leafDoc(l))
		}
		doc.LeafHeight = lf.LeafHeights()
		doc.Weight = lf.Weights()
		doc.Samples = packSamples(lf.BagSamples())
		doc.SampleEnd = lf.SampleEnds()
	}
	if b.Bag != nil {
		doc.BagRows = b.Bag.NRow()
		trees, err := b.Bag.MarshalTrees()
		if err != nil {
			return nil, err
		}
		doc.Bag = trees
	}
	data, err := bson.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, "encoding bundle as BSON")
	}
	return compress(data, c)
}

// UnmarshalBundle decodes a bundle encoded by MarshalBundle.
func UnmarshalBundle(data []byte) (*forest.Bundle, error) {
	raw, err := decompress(data)
	if err != nil {
		return nil, err
	}
	doc := &bundleDoc{}
	if err = bson.Unmarshal(raw, doc); err != nil {
		return nil, errors.Wrap(err, "decoding BSON bundle")
	}
	if doc.Version != bundleVersion {
		return nil, errors.Errorf("unsupported bundle version %d", doc.Version)
	}
	slots, err := unpackSlots(doc.FacSlots)
	if err != nil {
		return nil, err
	}
	facBits, err := bv.JaggedFrom(slots, doc.FacHeight)
	if err != nil {
		return nil, errors.Wrap(err, "decoding factor bits")
	}
	nodes := make([]forest.Node, len(doc.Nodes))
	for i, n := range doc.Nodes {
		nodes[i] = forest.Node(n)
	}
	f, err := forest.New(doc.NPredNum, nodes, doc.Height, facBits)
	if err != nil {
		return nil, errors.Wrap(err, "decoding forest")
	}
	leaves := make([]forest.Leaf, len(doc.Leaves))
	for i, l := range doc.Leaves {
		leaves[i] = forest.Leaf(l)
	}
	samples, err := unpackSamples(doc.Samples)
	if err != nil {
		return nil, err
	}
	lf, err := forest.LeafFrameFrom(doc.NCtg, doc.Default, leaves, doc.LeafHeight, doc.Weight, samples, doc.SampleEnd, doc.Thin)
	if err != nil {
		return nil, errors.Wrap(err, "decoding leaves")
	}
	bag, err := forest.BagFrom(doc.BagRows, doc.Bag)
	if err != nil {
		return nil, err
	}
	return &forest.Bundle{Forest: f, Leaf: lf, Bag: bag, Meta: forest.Meta(doc.Meta)}, nil
}

// WriteBundle writes an encoded bundle onto w.
func WriteBundle(w io.Writer, b *forest.Bundle, c Compression) error {
	data, err := MarshalBundle(b, c)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return errors.Wrap(err, "writing bundle")
}

// ReadBundle reads an encoded bundle from r until EOF.
func ReadBundle(r io.Reader) (*forest.Bundle, error) {
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading bundle")
	}
	return UnmarshalBundle(data)
}

/*
WriteBundleToFile takes a filepath string and a bundle, creates the file and
writes the encoded bundle onto it.
*/
func WriteBundleToFile(filepath string, b *forest.Bundle, c Compression) error {
	f, err := os.Create(filepath)
	if err != nil {
		return err
	}
	if err = WriteBundle(f, b, c); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadBundleFromFile reads a bundle written by WriteBundleToFile.
func ReadBundleFromFile(filepath string) (*forest.Bundle, error) {
	f, err := os.Open(filepath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	b, err := ReadBundle(f)
	if err != nil {
		err = errors.Wrapf(err, "bundle file %s", filepath)
	}
	return b, err
}

func packSlots(slots []uint64) []byte {
	out := make([]byte, 8*len(slots))
	for i, s := range slots {
		binary.LittleEndian.PutUint64(out[8*i:], s)
	}
	return out
}

func unpackSlots(data []byte) ([]uint64, error) {
	if len(data)%8 != 0 {
		return nil, errors.Errorf("%d bytes of factor bits is not a whole number of slots", len(data))
	}
	slots := make([]uint64, len(data)/8)
	for i := range slots {
		slots[i] = binary.LittleEndian.Uint64(data[8*i:])
	}
	return slots, nil
}

const sampleSize = 12

func packSamples(samples []forest.BagSample) []byte {
	out := make([]byte, sampleSize*len(samples))
	for i, s := range samples {
		p := out[sampleSize*i:]
		binary.LittleEndian.PutUint32(p, s.Leaf)
		binary.LittleEndian.PutUint32(p[4:], s.Row)
		binary.LittleEndian.PutUint32(p[8:], s.SCount)
	}
	return out
}

func unpackSamples(data []byte) ([]forest.BagSample, error) {
	if len(data)%sampleSize != 0 {
		return nil, errors.Errorf("%d bytes of bag samples is not a whole number of samples", len(data))
	}
	samples := make([]forest.BagSample, len(data)/sampleSize)
	for i := range samples {
		p := data[sampleSize*i:]
		samples[i] = forest.BagSample{
			Leaf:   binary.LittleEndian.Uint32(p),
			Row:    binary.LittleEndian.Uint32(p[4:]),
			SCount: binary.LittleEndian.Uint32(p[8:]),
		}
	}
	return samples, nil
}
