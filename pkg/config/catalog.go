package config

// ContentTypeInfo pairs the content formats a content type accepts with the
// short token used to build a versioned file name for it.
type ContentTypeInfo struct {
	Formats []string
	Slug    string
}

// Milestones lists the recognized deposition milestones, including the
// empty string and "none", which both mean "no milestone".
var Milestones = []string{"upload", "upload-convert", "deposit", "annotate", "release", "review", "", "none"}

// RepositoryTypes lists the recognized top-level repository directories.
var RepositoryTypes = []string{
	"deposit", "archive", "workflow", "session",
	"onedep-deposit", "onedep-archive", "onedep-workflow", "onedep-session",
	"test", "tests", "unit-test", "unit-tests",
}

// ContentTypes maps a content type name to its accepted formats and slug.
// This is the catalog every deposited file name is built and validated
// against; it mirrors the wwPDB content type registry.
var ContentTypes = map[string]ContentTypeInfo{
	"model":                                  {[]string{"pdbx", "pdb", "pdbml", "cifeps"}, "model"},
	"model-emd":                              {[]string{"pdbx", "xml"}, "model-emd"},
	"model-aux":                              {[]string{"pdbx"}, "model-aux"},
	"model-legacy-rcsb":                      {[]string{"pdbx", "pdb"}, "model-legacy-rcsb"},
	"structure-factors":                      {[]string{"pdbx", "mtz", "txt"}, "sf"},
	"structure-factors-legacy-rcsb":          {[]string{"pdbx", "mtz"}, "sf-legacy-rcsb"},
	"nmr-data-config":                        {[]string{"json"}, "nmr-data-config"},
	"nmr-data-nef":                           {[]string{"nmr-star", "pdbx"}, "nmr-data-nef"},
	"nmr-data-str":                           {[]string{"nmr-star", "pdbx"}, "nmr-data-str"},
	"nmr-data-nef-report":                    {[]string{"json"}, "nmr-data-nef-report"},
	"nmr-data-str-report":                    {[]string{"json"}, "nmr-data-str-report"},
	"nmr-restraints":                         {[]string{"any", "nmr-star", "amber", "amber-aux", "cns", "cyana", "xplor", "xplor-nih", "pdb-mr", "mr"}, "mr"},
	"nmr-chemical-shifts":                    {[]string{"nmr-star", "pdbx", "any"}, "cs"},
	"nmr-chemical-shifts-raw":                {[]string{"nmr-star", "pdbx"}, "cs-raw"},
	"nmr-chemical-shifts-auth":               {[]string{"nmr-star", "pdbx"}, "cs-auth"},
	"nmr-chemical-shifts-upload-report":      {[]string{"pdbx"}, "nmr-chemical-shifts-upload-report"},
	"nmr-chemical-shifts-atom-name-report":   {[]string{"pdbx"}, "nmr-chemical-shifts-atom-name-report"},
	"nmr-shift-error-report":                 {[]string{"json"}, "nmr-shift-error-report"},
	"nmr-bmrb-entry":                         {[]string{"nmr-star", "pdbx"}, "nmr-bmrb-entry"},
	"nmr-harvest-file":                       {[]string{"tgz"}, "nmr-harvest-file"},
	"nmr-peaks":                              {[]string{"any"}, "nmr-peaks"},
	"nmr-nef":                                {[]string{"nmr-star", "pdbx"}, "nmr-nef"},
	"nmr-cs-check-report":                    {[]string{"html"}, "nmr-cs-check-report"},
	"nmr-cs-xyz-check-report":                {[]string{"html"}, "nmr-cs-xyz-check-report"},
	"nmr-cs-path-list":                       {[]string{"txt"}, "nmr-cs-path-list"},
	"nmr-cs-auth-file-name-list":             {[]string{"txt"}, "nmr-cs-auth-file-name-list"},
	"nmr-mr-path-list":                       {[]string{"json"}, "nmr-mr-path-list"},
	"component-image":                        {[]string{"jpg", "png", "gif", "svg", "tif", "tiff"}, "ccimg"},
	"component-definition":                   {[]string{"pdbx", "sdf"}, "ccdef"},
	"em-volume":                              {[]string{"map", "ccp4", "mrc2000", "bcif"}, "em-volume"},
	"em-mask-volume":                         {[]string{"map", "ccp4", "mrc2000", "bcif"}, "em-mask-volume"},
	"em-additional-volume":                   {[]string{"map", "ccp4", "mrc2000", "bcif"}, "em-additional-volume"},
	"em-half-volume":                         {[]string{"map", "ccp4", "mrc2000", "bcif"}, "em-half-volume"},
	"em-raw-volume":                          {[]string{"map", "ccp4", "mrc2000", "bcif"}, "em-raw-volume"},
	"em-fsc-half-mask-volume":                {[]string{"map", "ccp4", "mrc2000", "bcif"}, "em-fsc-half-mask-volume"},
	"em-fsc-map-model-mask-volume":           {[]string{"map", "ccp4", "mrc2000", "bcif"}, "em-fsc-map-model-mask-volume"},
	"em-alignment-mask-volume":               {[]string{"map", "ccp4", "mrc2000", "bcif"}, "em-alignment-mask-volume"},
	"em-focused-refinement-mask-volume":      {[]string{"map", "ccp4", "mrc2000", "bcif"}, "em-focused-refinement-mask-volume"},
	"em-3d-classification-additional-volume": {[]string{"map", "ccp4", "mrc2000", "bcif"}, "em-3d-classification-additional-volume"},
	"em-focus-refinement-additional-volume":  {[]string{"map", "ccp4", "mrc2000", "bcif"}, "em-focus-refinement-additional-volume"},
	"em-segmentation-volume":                 {[]string{"map", "ccp4", "mrc2000", "bcif"}, "em-segmentation-volume"},
	"em-volume-wfcfg":                        {[]string{"json"}, "em-volume-wfcfg"},
	"em-mask-volume-wfcfg":                   {[]string{"json"}, "em-mask-volume-wfcfg"},
	"em-additional-volume-wfcfg":             {[]string{"json"}, "em-additional-volume-wfcfg"},
	"em-half-volume-wfcfg":                   {[]string{"json"}, "em-half-volume-wfcfg"},
	"em-volume-report":                       {[]string{"json"}, "em-volume-report"},
	"em-volume-header":                       {[]string{"xml"}, "em-volume-header"},
	"em-model-emd":                           {[]string{"pdbx"}, "em-model-emd"},
	"em-structure-factors":                   {[]string{"pdbx", "mtz"}, "em-sf"},
	"emd-xml-header-report":                  {[]string{"txt"}, "emd-xml-header-report"},
	"validation-report-depositor":            {[]string{"pdf"}, "valdep"},
	"seqdb-match":                            {[]string{"pdbx", "pic"}, "seqdb-match"},
	"blast-match":                            {[]string{"xml"}, "blast-match"},
	"seq-assign":                             {[]string{"pdbx"}, "seq-assign"},
	"partial-seq-annotate":                   {[]string{"txt"}, "partial-seq-annotate"},
	"seq-data-stats":                         {[]string{"pic"}, "seq-data-stats"},
	"seq-align-data":                         {[]string{"pic"}, "seq-align-data"},
	"pre-seq-align-data":                     {[]string{"pic"}, "pre-seq-align-data"},
	"seqmatch":                               {[]string{"pdbx"}, "seqmatch"},
	"mismatch-warning":                       {[]string{"pic"}, "mismatch-warning"},
	"polymer-linkage-distances":              {[]string{"pdbx", "json"}, "poly-link-dist"},
	"polymer-linkage-report":                 {[]string{"html"}, "poly-link-report"},
	"geometry-check-report":                  {[]string{"pdbx"}, "geometry-check-report"},
	"chem-comp-link":                         {[]string{"pdbx"}, "cc-link"},
	"chem-comp-assign":                       {[]string{"pdbx"}, "cc-assign"},
	"chem-comp-assign-final":                 {[]string{"pdbx"}, "cc-assign-final"},
	"chem-comp-assign-details":               {[]string{"pic"}, "cc-assign-details"},
	"chem-comp-depositor-info":               {[]string{"pdbx"}, "cc-dpstr-info"},
	"prd-search":                             {[]string{"pdbx"}, "prd-summary"},
	"assembly-report":                        {[]string{"txt", "xml"}, "assembly-report"},
	"assembly-assign":                        {[]string{"pdbx", "txt"}, "assembly-assign"},
	"assembly-depinfo-update":                {[]string{"txt"}, "assembly-depinfo-update"},
	"interface-assign":                       {[]string{"xml"}, "interface-assign"},
	"assembly-model":                         {[]string{"pdb", "pdbx"}, "assembly-model"},
	"assembly-model-xyz":                     {[]string{"pdb", "pdbx"}, "assembly-model-xyz"},
	"site-assign":                            {[]string{"pdbx"}, "site-assign"},
	"dict-check-report":                      {[]string{"txt"}, "dict-check-report"},
	"dict-check-report-r4":                   {[]string{"txt"}, "dict-check-report-r4"},
	"dict-check-report-next":                 {[]string{"txt"}, "dict-check-report-next"},
	"tom-complex-report":                     {[]string{"txt"}, "tom-upload-report"},
	"tom-merge-report":                       {[]string{"txt"}, "tom-merge-report"},
	"format-check-report":                    {[]string{"txt"}, "format-check-report"},
	"misc-check-report":                      {[]string{"txt"}, "misc-check-report"},
	"special-position-report":                {[]string{"txt"}, "special-position-report"},
	"merge-xyz-report":                       {[]string{"txt"}, "merge-xyz-report"},
	"model-issues-report":                    {[]string{"json"}, "model-issues-report"},
	"structure-factor-report":                {[]string{"json"}, "structure-factor-report"},
	"validation-report":                      {[]string{"pdf"}, "val-report"},
	"validation-report-full":                 {[]string{"pdf"}, "val-report-full"},
	"validation-report-slider":               {[]string{"png", "svg"}, "val-report-slider"},
	"validation-data":                        {[]string{"pdbx", "xml"}, "val-data"},
	"validation-report-2fo-map-coef":         {[]string{"pdbx"}, "val-report-wwpdb-2fo-fc-edmap-coef"},
	"validation-report-fo-map-coef":          {[]string{"pdbx"}, "val-report-wwpdb-fo-fc-edmap-coef"},
	"validation-report-images":               {[]string{"tar"}, "val-report-images"},
	"map-xray":                               {[]string{"bcif"}, "map-xray"},
	"map-2fofc":                              {[]string{"map"}, "map-2fofc"},
	"map-fofc":                               {[]string{"map"}, "map-fofc"},
	"map-omit-2fofc":                         {[]string{"map"}, "map-omit-2fofc"},
	"map-omit-fofc":                          {[]string{"map"}, "map-omit-fofc"},
	"sf-convert-report":                      {[]string{"pdbx", "txt"}, "sf-convert-report"},
	"em-sf-convert-report":                   {[]string{"pdbx", "txt"}, "em-sf-convert-report"},
	"dcc-report":                             {[]string{"pdbx", "txt"}, "dcc-report"},
	"mapfix-header-report":                   {[]string{"json"}, "mapfix-header-report"},
	"mapfix-report":                          {[]string{"txt"}, "mapfix-report"},
	"secondary-structure-topology":           {[]string{"txt"}, "ss-topology"},
	"sequence-fasta":                         {[]string{"fasta", "fsa"}, "fasta"},
	"messages-from-depositor":                {[]string{"pdbx"}, "messages-from-depositor"},
	"messages-to-depositor":                  {[]string{"pdbx"}, "messages-to-depositor"},
	"notes-from-annotator":                   {[]string{"pdbx"}, "notes-from-annotator"},
	"correspondence-to-depositor":            {[]string{"txt"}, "correspondence-to-depositor"},
	"correspondence-legacy-rcsb":             {[]string{"pdbx"}, "correspondence-legacy-rcsb"},
	"correspondence-info":                    {[]string{"pdbx"}, "correspondence-info"},
	"map-header-data":                        {[]string{"json", "pic", "txt"}, "map-header-data"},
	"deposit-volume-params":                  {[]string{"pic"}, "deposit-volume-params"},
	"fsc":                                    {[]string{"xml"}, "fsc-xml"},
	"fsc-report":                             {[]string{"txt"}, "fsc-report"},
	"res-est-fsc":                            {[]string{"xml"}, "res-est-fsc"},
	"res-est-fsc-report":                     {[]string{"txt"}, "res-est-fsc-report"},
	"map-model-fsc":                          {[]string{"xml"}, "map-model-fsc"},
	"map-model-fsc-report":                   {[]string{"txt"}, "map-model-fsc-report"},
	"em2em-report":                           {[]string{"txt"}, "em2em-report"},
	"img-emdb":                               {[]string{"jpg", "png", "gif", "svg", "tif"}, "img-emdb"},
	"img-emdb-report":                        {[]string{"txt"}, "img-emdb-report"},
	"layer-lines":                            {[]string{"txt"}, "layer-lines"},
	"auxiliary-file":                         {[]string{"any"}, "aux-file"},
	"status-history":                         {[]string{"pdbx"}, "status-history"},
	"virus-matrix":                           {[]string{"any"}, "virus"},
	"parameter-file":                         {[]string{"any"}, "parm"},
	"structure-def-file":                     {[]string{"any"}, "struct"},
	"topology-file":                          {[]string{"any"}, "topo"},
	"cmd-line-args":                          {[]string{"txt"}, "cmd-line-args"},
	"deposition-info":                        {[]string{"pdbx", "json"}, "deposition-info"},
	"deposition-store":                       {[]string{"tar"}, "deposition-store"},
	"bundle-session-archive":                 {[]string{"tar", "tgz"}, "bundle-session-archive"},
	"bundle-session-deposit":                 {[]string{"tar", "tgz"}, "bundle-session-deposit"},
	"bundle-session-upload":                  {[]string{"tar", "tgz"}, "bundle-session-upload"},
	"bundle-session-tempdep":                 {[]string{"tar", "tgz"}, "bundle-session-tempdep"},
	"bundle-session-uitemp":                  {[]string{"tar", "tgz"}, "bundle-session-uitemp"},
	"bundle-session-workflow":                {[]string{"tar", "tgz"}, "bundle-session-workflow"},
	"session-backup":                         {[]string{"tar", "tgz"}, "bundle-session-workflow"},
	"manifest-session":                       {[]string{"json"}, "manifest-session"},
	"manifest-session-bundle":                {[]string{"json"}, "manifest-session-bundle"},
	"any":                                    {[]string{"any"}, "any"},
}

// FileFormatExtensions maps a content format name to the file extension used
// when composing an on-disk file name.
var FileFormatExtensions = map[string]string{
	"pdbx": "cif", "pdb": "pdb", "cifeps": "cifeps", "pdbml": "xml",
	"nmr-star": "str", "gz": "gz", "tgz": "tgz", "mtz": "mtz",
	"html": "html", "jpg": "jpg", "png": "png", "svg": "svg", "gif": "gif",
	"tif": "tif", "tiff": "tiff", "sdf": "sdf", "ccp4": "ccp4", "mrc2000": "mrc",
	"pic": "pic", "txt": "txt", "xml": "xml", "pdf": "pdf", "map": "map",
	"bcif": "bcif", "amber": "amber", "amber-aux": "amber-aux", "cns": "cns",
	"cyana": "cyana", "xplor": "xplor", "xplor-nih": "xplor-nih",
	"pdb-mr": "mr", "mr": "mr", "json": "json", "fsa": "fsa", "fasta": "fasta",
	"any": "dat", "mdl": "mdl", "tar": "tar",
}

// CheckContentTypeFormat reports whether contentFormat is an accepted format
// of contentType.
func CheckContentTypeFormat(contentType, contentFormat string) bool {
	info, ok := ContentTypes[contentType]
	if !ok {
		return false
	}
	for _, f := range info.Formats {
		if f == contentFormat {
			return true
		}
	}
	return false
}
