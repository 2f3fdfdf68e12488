// Convert a directory tree of rendered shape views into the cached dataset
// format. The source layout under <data dir>/modelnet is one directory per
// class containing train and test subdirectories of image files, where all
// views of one object share the name prefix before the final underscore,
// e.g. chair_0042_v01.png .. chair_0042_v12.png.
package main

import (
	"flag"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/LinyanCui/mvcnn/img"
	"github.com/LinyanCui/mvcnn/nnet"
)

func main() {
	name := flag.String("name", "modelnet", "source directory name under the data dir")
	out := flag.String("out", "", "output dataset name, defaults to the source name")
	views := flag.Int("views", 12, "number of views per object, 1 treats each image as an object")
	size := flag.Int("size", 64, "image height and width after scaling")
	channels := flag.Int("channels", 1, "image channels: 1 for grayscale or 3 for RGB")
	border := flag.Int("border", 8, "extra border pixels for random crops")
	flag.Parse()

	if *out == "" {
		*out = *name
	}
	srcDir := path.Join(nnet.DataDir, *name)
	classes, err := readClasses(srcDir)
	nnet.CheckErr(err)
	fmt.Printf("found %d classes in %s\n", len(classes), srcDir)

	norm := img.Normalization{
		Height: *size, Width: *size, Channels: *channels,
		Interpolation: "bilinear", BorderH: *border, BorderW: *border,
	}
	for _, key := range []string{"train", "test"} {
		data, err := loadSplit(srcDir, key, classes, norm, *views, *channels)
		nnet.CheckErr(err)
		if key == "train" {
			norm.AverageImage = meanImage(data.Images, norm)
		}
		data.Norm = norm
		err = nnet.SaveDataFile(data, *out+"_"+key)
		nnet.CheckErr(err)
	}
}

// each class is a subdirectory of the source dir
func readClasses(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var classes []string
	for _, e := range entries {
		if e.IsDir() {
			classes = append(classes, e.Name())
		}
	}
	if len(classes) == 0 {
		return nil, fmt.Errorf("no class directories found in %s", dir)
	}
	return classes, nil
}

func loadSplit(dir, key string, classes []string, norm img.Normalization, views, channels int) (*img.Data, error) {
	var labels []int32
	var images []img.Image
	for ix, class := range classes {
		files, err := listImages(path.Join(dir, class, key))
		if err != nil {
			return nil, err
		}
		objects, err := groupViews(files, views)
		if err != nil {
			return nil, fmt.Errorf("class %s: %w", class, err)
		}
		for _, obj := range objects {
			for _, file := range obj {
				m, err := loadImage(path.Join(dir, class, key, file), channels)
				if err != nil {
					return nil, err
				}
				images = append(images, m)
			}
			labels = append(labels, int32(ix))
		}
		fmt.Printf("%s %s: %d objects\n", class, key, len(objects))
	}
	return img.NewData(classes, norm, views, labels, images)
}

func listImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasSuffix(name, ".png") || strings.HasSuffix(name, ".jpg") {
			files = append(files, name)
		}
	}
	sort.Strings(files)
	return files, nil
}

// group sorted file names into runs of views consecutive views per object
func groupViews(files []string, views int) ([][]string, error) {
	var objects [][]string
	for start := 0; start < len(files); start += views {
		if start+views > len(files) {
			return nil, fmt.Errorf("have %d files, not a multiple of %d views", len(files), views)
		}
		prefix := viewPrefix(files[start])
		for _, f := range files[start : start+views] {
			if viewPrefix(f) != prefix {
				return nil, fmt.Errorf("object %s does not have %d views", prefix, views)
			}
		}
		objects = append(objects, files[start:start+views])
	}
	return objects, nil
}

// object name prefix before the final underscore
func viewPrefix(file string) string {
	if pos := strings.LastIndexByte(file, '_'); pos >= 0 {
		return file[:pos]
	}
	return file
}

func loadImage(file string, channels int) (img.Image, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	src, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("error decoding %s: %w", file, err)
	}
	return img.Decode(src, channels), nil
}

// per pixel mean over the training images at the normalized size
func meanImage(images []img.Image, norm img.Normalization) []float32 {
	scaled := make([]img.Image, len(images))
	for i, m := range images {
		scaled[i] = img.Resize(m, norm.Width, norm.Height, false)
	}
	return img.MeanImage(scaled)
}
