/*Package interval implements per-chromosome interval indexes over genomic
  coordinates.  Unlike an interval-union representation, overlapping and
  duplicate intervals are tracked as distinct entries: the index answers
  "which indexed intervals overlap this query?" with full multiplicity,
  which is what an overlap join needs.
  Coordinates are int64 and intervals are closed on both ends.  Genomic
  positions fit comfortably (BAM caps them at int32); int64 keeps gap
  expansion and overlap-length arithmetic safe without range checks.
*/
package interval
