package cnn

// WGSL compute shaders for the layer program.
//
// Each body is compiled with a header declaring the program constants
// (C, HIN, K, HCONV, P, HOUT) and the work-group shape (WG_X, WG_Y, WG_Z).
// Dispatch axes map x to columns, y to rows and z to channels.

// biasInitShader broadcasts bias[c] over channel c of the accumulator.
const biasInitShader = `
@group(0) @binding(0) var<storage, read_write> acc: array<f32>;
@group(0) @binding(1) var<storage, read> bias: array<f32>;

@compute @workgroup_size(WG_X, WG_Y, WG_Z)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let c = gid.z;
    let i = gid.y;
    let j = gid.x;
    if (c >= C || i >= HCONV || j >= HCONV) {
        return;
    }
    acc[(c * HCONV + i) * HCONV + j] = bias[c];
}
`

// convolutionShader accumulates the valid K x K cross-channel correlation.
const convolutionShader = `
@group(0) @binding(0) var<storage, read_write> acc: array<f32>;
@group(0) @binding(1) var<storage, read> weight: array<f32>;
@group(0) @binding(2) var<storage, read> image: array<f32>;

@compute @workgroup_size(WG_X, WG_Y, WG_Z)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let co = gid.z;
    let i = gid.y;
    let j = gid.x;
    if (co >= C || i >= HCONV || j >= HCONV) {
        return;
    }

    var sum: f32 = 0.0;
    for (var ci: u32 = 0u; ci < C; ci = ci + 1u) {
        let w_base = (co * C + ci) * K * K;
        let in_base = ci * HIN * HIN;
        for (var ki: u32 = 0u; ki < K; ki = ki + 1u) {
            let row = in_base + (i + ki) * HIN + j;
            let w_row = w_base + ki * K;
            for (var kj: u32 = 0u; kj < K; kj = kj + 1u) {
                sum = sum + weight[w_row + kj] * image[row + kj];
            }
        }
    }

    let idx = (co * HCONV + i) * HCONV + j;
    acc[idx] = acc[idx] + sum;
}
`

// reluShader rectifies the accumulator in place.
const reluShader = `
@group(0) @binding(0) var<storage, read_write> acc: array<f32>;

@compute @workgroup_size(WG_X, WG_Y, WG_Z)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    if (gid.z >= C || gid.y >= HCONV || gid.x >= HCONV) {
        return;
    }
    let idx = (gid.z * HCONV + gid.y) * HCONV + gid.x;
    acc[idx] = max(acc[idx], 0.0);
}
`

// maxPoolingShader reduces disjoint P x P windows of the accumulator.
const maxPoolingShader = `
@group(0) @binding(0) var<storage, read> acc: array<f32>;
@group(0) @binding(1) var<storage, read_write> output: array<f32>;

@compute @workgroup_size(WG_X, WG_Y, WG_Z)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let c = gid.z;
    let oi = gid.y;
    let oj = gid.x;
    if (c >= C || oi >= HOUT || oj >= HOUT) {
        return;
    }

    let base = (c * HCONV + oi * P) * HCONV + oj * P;
    var best: f32 = acc[base];
    for (var pi: u32 = 0u; pi < P; pi = pi + 1u) {
        let row = base + pi * HCONV;
        for (var pj: u32 = 0u; pj < P; pj = pj + 1u) {
            best = max(best, acc[row + pj]);
        }
    }
    output[(c * HOUT + oi) * HOUT + oj] = best;
}
`
