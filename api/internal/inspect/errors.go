package inspect

import "errors"

var errNoImages = errors.New("none of the images could be downloaded")
