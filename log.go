// Copyright 2024 The Serialization Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package serialization

import "github.com/sirupsen/logrus"

// Log is the diagnostic sink for non-fatal warnings (a missing Class
// attribute on read, a non-string Class value). Replace it wholesale to
// redirect diagnostics; there is no per-call logger threaded through
// Context since only the rare warning path needs one.
var Log = logrus.New()

func warnMissingClass(format Format, path string) {
	Log.WithFields(logrus.Fields{
		"format": format,
		"path":   path,
	}).Warn("serialization: missing Class attribute, defaulting to empty type identity")
}

func warnNonStringClass(format Format, path string) {
	Log.WithFields(logrus.Fields{
		"format": format,
		"path":   path,
	}).Warn("serialization: Class attribute is not a string, defaulting to empty type identity")
}
